package migration

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sqlite/*.sql postgres/*.sql
var embedded embed.FS

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Source returns the embedded migrations for dialect ("sqlite" or "postgres").
func Source(dialect string) (fs.FS, error) {
	switch dialect {
	case "sqlite", "postgres":
		return fs.Sub(embedded, dialect)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
}

// Scan reads every migration file at the root of fsys, sorted by version.
func Scan(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := parseFile(fsys, entry.Name())
		if err != nil {
			return nil, err
		}
		if other, ok := seen[m.Version]; ok {
			return nil, newMigrationError(m, "check duplicates",
				fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, other, m.FilePath))
		}
		seen[m.Version] = m.FilePath
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseFile(fsys fs.FS, name string) (Migration, error) {
	m := Migration{FilePath: name}
	matches := fileNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return m, newMigrationError(m, "validate filename",
			fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name))
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil || version <= 0 {
		return m, newMigrationError(m, "validate filename",
			fmt.Errorf("%w: version %q", ErrInvalidMigrationFile, matches[1]))
	}
	m.Version = version

	raw, err := fs.ReadFile(fsys, path.Clean(name))
	if err != nil {
		return m, newMigrationError(m, "read file", err)
	}
	m.SQL = string(raw)
	if len(splitStatements(m.SQL)) == 0 {
		return m, newMigrationError(m, "validate content",
			fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}
	if err := checkParentheses(m.SQL); err != nil {
		return m, newMigrationError(m, "validate content", err)
	}

	m.Description = descriptionFromContent(m.SQL)
	if m.Description == "" {
		m.Description = strings.ReplaceAll(matches[2], "_", " ")
	}
	m.Checksum = fmt.Sprintf("%x", sha256.Sum256(raw))
	return m, nil
}

func descriptionFromContent(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if rest, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func checkParentheses(sql string) error {
	depth := 0
	for _, line := range strings.Split(sql, "\n") {
		line, _, _ = strings.Cut(line, "--")
		quoted := false
		for _, r := range line {
			if r == '\'' {
				quoted = !quoted
				continue
			}
			if quoted {
				continue
			}
			switch r {
			case '(':
				depth++
			case ')':
				depth--
				if depth < 0 {
					return fmt.Errorf("%w: unmatched closing parenthesis", ErrInvalidMigrationFile)
				}
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unmatched opening parenthesis", ErrInvalidMigrationFile)
	}
	return nil
}

var (
	beginWord = regexp.MustCompile(`(?i)\bBEGIN\b`)
	endWord   = regexp.MustCompile(`(?i)\bEND\b`)
)

// splitStatements splits a file on semicolons, keeping trigger bodies
// (BEGIN ... END) together and dropping comment-only fragments.
func splitStatements(sql string) []string {
	var (
		lines []string
		out   []string
		buf   strings.Builder
	)
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		lines = append(lines, trimmed)
	}

	for _, part := range strings.Split(strings.Join(lines, "\n"), ";") {
		if buf.Len() > 0 {
			buf.WriteString(";")
		}
		buf.WriteString(part)
		stmt := buf.String()
		if len(beginWord.FindAllString(stmt, -1)) > len(endWord.FindAllString(stmt, -1)) {
			continue
		}
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
		buf.Reset()
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		out = append(out, s)
	}
	return out
}

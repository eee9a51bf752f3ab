package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		files    fstest.MapFS
		versions []int
		wantErr  error
	}{
		{
			name: "sorted by numeric version",
			files: fstest.MapFS{
				"10_add_index.sql":     {Data: []byte("CREATE INDEX idx ON rooms (name);")},
				"2_add_rooms.sql":      {Data: []byte("CREATE TABLE rooms (id INTEGER);")},
				"1_initial_schema.sql": {Data: []byte("CREATE TABLE users (id INTEGER);")},
				"README.md":            {Data: []byte("# notes")},
			},
			versions: []int{1, 2, 10},
		},
		{
			name: "bad filename",
			files: fstest.MapFS{
				"initial.sql": {Data: []byte("CREATE TABLE users (id INTEGER);")},
			},
			wantErr: ErrInvalidMigrationFile,
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
				"1_b.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
			},
			wantErr: ErrDuplicateVersion,
		},
		{
			name: "comment only",
			files: fstest.MapFS{
				"001_empty.sql": {Data: []byte("-- nothing here\n")},
			},
			wantErr: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parentheses",
			files: fstest.MapFS{
				"001_broken.sql": {Data: []byte("CREATE TABLE a (id INTEGER;")},
			},
			wantErr: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Scan(tt.files)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.versions) {
				t.Fatalf("expected %d migrations, got %d", len(tt.versions), len(got))
			}
			for i, v := range tt.versions {
				if got[i].Version != v {
					t.Fatalf("position %d: expected version %d, got %d", i, v, got[i].Version)
				}
				if got[i].Checksum == "" {
					t.Fatalf("version %d has no checksum", v)
				}
			}
		})
	}
}

func TestScan_Description(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"001_add_rooms.sql": {Data: []byte("-- Description: rooms table\nCREATE TABLE rooms (id INTEGER);")},
		"002_add_index.sql": {Data: []byte("CREATE INDEX idx ON rooms (id);")},
	}
	got, err := Scan(files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Description != "rooms table" {
		t.Fatalf("expected description from content, got %q", got[0].Description)
	}
	if got[1].Description != "add index" {
		t.Fatalf("expected description from filename, got %q", got[1].Description)
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	sql := `-- header
CREATE TABLE a (id INTEGER);

CREATE TRIGGER a_guard
BEFORE INSERT ON a
BEGIN
    SELECT RAISE(ABORT, 'nope') WHERE NEW.id < 0;
END;
CREATE INDEX idx_a_end_ms ON a (id);`

	got := splitStatements(sql)
	if len(got) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(got), got)
	}
	want := "CREATE TRIGGER a_guard\nBEFORE INSERT ON a\nBEGIN\nSELECT RAISE(ABORT, 'nope') WHERE NEW.id < 0;\nEND"
	if got[1] != want {
		t.Fatalf("trigger statement mismatch:\n got %q\nwant %q", got[1], want)
	}
}

func TestSource(t *testing.T) {
	t.Parallel()

	for _, dialect := range []string{"sqlite", "postgres"} {
		fsys, err := Source(dialect)
		if err != nil {
			t.Fatalf("%s: %v", dialect, err)
		}
		migrations, err := Scan(fsys)
		if err != nil {
			t.Fatalf("%s: %v", dialect, err)
		}
		if len(migrations) == 0 || migrations[0].Version != 1 {
			t.Fatalf("%s: expected migrations starting at version 1", dialect)
		}
	}

	if _, err := Source("mysql"); !errors.Is(err, ErrUnknownDialect) {
		t.Fatalf("expected ErrUnknownDialect, got %v", err)
	}
}

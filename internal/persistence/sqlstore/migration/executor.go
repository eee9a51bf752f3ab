package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const versionTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at BIGINT NOT NULL,
	execution_time_ms BIGINT NOT NULL
)`

// Executor runs migrations against a database and tracks them in schema_migrations.
type Executor struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewExecutor constructs an executor. Placeholders are rebound for the db's driver.
func NewExecutor(db *sqlx.DB) *Executor {
	return &Executor{db: db, now: time.Now}
}

// InitializeVersionTable creates schema_migrations if it does not exist.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, versionTableSQL); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// Execute applies m and records it in a single transaction.
func (e *Executor) Execute(ctx context.Context, m Migration) (err error) {
	started := e.now()
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return newMigrationError(m, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(m.SQL) {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return newMigrationError(m, fmt.Sprintf("execute statement %d", i+1),
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
	}

	elapsed := e.now().Sub(started)
	insert := e.db.Rebind(`INSERT INTO schema_migrations (version, description, checksum, applied_at, execution_time_ms)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err = tx.ExecContext(ctx, insert, m.Version, m.Description, m.Checksum, e.now().UnixMilli(), elapsed.Milliseconds()); err != nil {
		return newMigrationError(m, "record migration", err)
	}

	if err = tx.Commit(); err != nil {
		return newMigrationError(m, "commit transaction", err)
	}
	return nil
}

type appliedRow struct {
	Version         int    `db:"version"`
	Checksum        string `db:"checksum"`
	AppliedAt       int64  `db:"applied_at"`
	ExecutionTimeMS int64  `db:"execution_time_ms"`
}

// Applied lists the recorded migrations in version order.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	var rows []appliedRow
	err := e.db.SelectContext(ctx, &rows,
		`SELECT version, checksum, applied_at, execution_time_ms FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make([]AppliedMigration, 0, len(rows))
	for _, r := range rows {
		applied = append(applied, AppliedMigration{
			Version:       r.Version,
			AppliedAt:     time.UnixMilli(r.AppliedAt).UTC(),
			ExecutionTime: time.Duration(r.ExecutionTimeMS) * time.Millisecond,
			Checksum:      r.Checksum,
		})
	}
	return applied, nil
}

package migration

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func openMemoryDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestManager_RunIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openMemoryDB(t)

	source, err := Source("sqlite")
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	manager := NewManager(db, source, nil)

	applied, err := manager.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if applied == 0 {
		t.Fatal("expected migrations to be applied")
	}

	again, err := manager.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected no pending migrations, applied %d", again)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CurrentVersion != 2 || len(status.Pending) != 0 {
		t.Fatalf("unexpected status: %+v", status)
	}

	var triggers int
	if err := db.GetContext(ctx, &triggers, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger'`); err != nil {
		t.Fatalf("count triggers: %v", err)
	}
	if triggers != 2 {
		t.Fatalf("expected 2 overlap triggers, got %d", triggers)
	}

	var onDelete string
	if err := db.GetContext(ctx, &onDelete,
		`SELECT on_delete FROM pragma_foreign_key_list('bookings') WHERE "table" = 'rooms'`); err != nil {
		t.Fatalf("read bookings foreign key: %v", err)
	}
	if onDelete != "RESTRICT" {
		t.Fatalf("expected bookings.room_id ON DELETE RESTRICT, got %q", onDelete)
	}
}

func TestManager_FailedMigrationRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openMemoryDB(t)

	source := fstest.MapFS{
		"001_good.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"002_bad.sql":  {Data: []byte("CREATE TABLE b (id INTEGER);\nINSERT INTO missing (id) VALUES (1);")},
	}
	manager := NewManager(db, source, nil)

	applied, err := manager.Run(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 applied migration before failure, got %d", applied)
	}

	var tables int
	if err := db.GetContext(ctx, &tables, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'b'`); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if tables != 0 {
		t.Fatal("expected table b to be rolled back")
	}
}

func TestManager_DetectsEditedMigration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openMemoryDB(t)

	original := fstest.MapFS{"001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")}}
	if _, err := NewManager(db, original, nil).Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	edited := fstest.MapFS{"001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER, name TEXT);")}}
	if _, err := NewManager(db, edited, nil).Run(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/example/campus-rooms/internal/persistence/sqlstore"
)

// NewStore opens a migrated in-memory SQLite store that is closed when the test ends.
func NewStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, ":memory:", DiscardLogger())
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if _, err := store.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return store
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

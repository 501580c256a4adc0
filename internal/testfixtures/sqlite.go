package testfixtures

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/persistence/memory"
	"github.com/example/desk-booking/internal/persistence/sqlstore"
)

// NewSQLiteStore opens a migrated SQLite store in a temporary directory. The
// store is closed when the test finishes. A file is used instead of :memory:
// so every pooled connection sees the same database.
func NewSQLiteStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()

	cfg := sqlstore.DefaultSQLiteConfig(filepath.Join(tb.TempDir(), "deskbook.db"))
	dsn, err := cfg.DSN()
	if err != nil {
		tb.Fatalf("failed to build sqlite dsn: %v", err)
	}

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DriverSQLite, DSN: dsn}, slog.New(slog.DiscardHandler))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if _, err := store.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return store
}

// Backend names a store implementation for contract tests.
type Backend struct {
	Name string
	Open func(tb testing.TB) persistence.Store
}

// Backends lists every store implementation the contract tests run against.
func Backends() []Backend {
	return []Backend{
		{Name: "memory", Open: func(testing.TB) persistence.Store { return memory.New() }},
		{Name: "sqlite", Open: func(tb testing.TB) persistence.Store { return NewSQLiteStore(tb) }},
	}
}

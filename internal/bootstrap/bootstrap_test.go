package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/desk-booking/internal/config"
	"github.com/example/desk-booking/internal/persistence/memory"
	"github.com/example/desk-booking/internal/persistence/sqlstore"
)

func TestOpenStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		store, err := OpenStore(ctx, config.DatabaseConfig{Driver: "Memory"}, logger)
		if err != nil {
			t.Fatalf("OpenStore failed: %v", err)
		}
		if _, ok := store.(*memory.Storage); !ok {
			t.Fatalf("expected memory storage, got %T", store)
		}
		if n, err := Migrate(ctx, store); n != 0 || err != nil {
			t.Fatalf("expected no-op migration, got %d, %v", n, err)
		}
		if _, err := MigrationStatus(ctx, store); !errors.Is(err, ErrNoMigrations) {
			t.Fatalf("expected ErrNoMigrations, got %v", err)
		}
	})

	t.Run("sqlite path", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "deskbook.db")
		store, err := OpenStore(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: path, MaxOpenConns: 4}, logger)
		if err != nil {
			t.Fatalf("OpenStore failed: %v", err)
		}
		defer store.Close()

		sqlStore, ok := store.(*sqlstore.Store)
		if !ok || sqlStore.Driver() != sqlstore.DriverSQLite {
			t.Fatalf("expected sqlite store, got %T", store)
		}
		if n, err := Migrate(ctx, store); err != nil || n == 0 {
			t.Fatalf("expected migrations to apply, got %d, %v", n, err)
		}
		status, err := MigrationStatus(ctx, store)
		if err != nil {
			t.Fatalf("MigrationStatus failed: %v", err)
		}
		if len(status.Pending) != 0 || status.CurrentVersion == "" {
			t.Fatalf("unexpected status %#v", status)
		}
	})

	t.Run("sqlite file DSN is used verbatim", func(t *testing.T) {
		t.Parallel()
		dsn := "file:" + filepath.Join(t.TempDir(), "raw.db") + "?_pragma=foreign_keys(1)"
		store, err := OpenStore(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, logger)
		if err != nil {
			t.Fatalf("OpenStore failed: %v", err)
		}
		_ = store.Close()
	})

	t.Run("unsupported driver", func(t *testing.T) {
		t.Parallel()
		if _, err := OpenStore(ctx, config.DatabaseConfig{Driver: "oracle", DSN: "x"}, logger); err == nil {
			t.Fatal("expected unsupported driver to fail")
		}
	})
}

func TestNewServices(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Session.Secret = "secret"
	svc := NewServices(memory.New(), cfg, slog.New(slog.DiscardHandler), Options{})
	if svc.Dispatcher == nil || svc.Auth == nil || svc.Directory == nil || svc.Cache == nil {
		t.Fatalf("expected every service to be wired, got %#v", svc)
	}
}

func TestRandomHex(t *testing.T) {
	t.Parallel()

	a, b := randomHex(32), randomHex(32)
	if len(a) != 64 || a == b {
		t.Fatalf("expected distinct 64 character tokens, got %q and %q", a, b)
	}
	if len(randomHex(0)) != 32 {
		t.Fatal("expected the default of 16 bytes")
	}
}

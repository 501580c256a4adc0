package migration

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestManager(t *testing.T, db *sql.DB, files fstest.MapFS) *Manager {
	t.Helper()
	return NewManager(files, NewExecutor(db, nil), slog.New(slog.DiscardHandler))
}

func TestManager_Run(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	files := fstest.MapFS{
		"001_users.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
		"002_rooms.sql": {Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY);\nCREATE INDEX idx_rooms ON rooms (id);")},
	}
	manager := newTestManager(t, db, files)

	applied, err := manager.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 migrations applied, got %d", applied)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO rooms (id) VALUES ('R1')"); err != nil {
		t.Fatalf("expected rooms table to exist: %v", err)
	}

	again, err := manager.Run(ctx)
	if err != nil || again != 0 {
		t.Fatalf("expected second run to be a no-op, got %d, %v", again, err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.Applied) != 2 || len(status.Pending) != 0 {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestManager_RunPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	files := fstest.MapFS{
		"001_users.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
	}
	if _, err := newTestManager(t, db, files).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	files["002_rooms.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY);")}
	manager := newTestManager(t, db, files)
	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status.Pending) != 1 || status.Pending[0].Version != "002" {
		t.Fatalf("expected 002 pending, got %#v", status.Pending)
	}
	applied, err := manager.Run(ctx)
	if err != nil || applied != 1 {
		t.Fatalf("expected one pending migration applied, got %d, %v", applied, err)
	}
}

func TestManager_FailedMigrationRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	files := fstest.MapFS{
		"001_users.sql":  {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY);\nINSERT INTO missing_table VALUES (1);")},
	}
	manager := newTestManager(t, db, files)

	applied, err := manager.Run(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	var migErr *MigrationError
	if !errors.As(err, &migErr) || migErr.Version != "002" {
		t.Fatalf("expected MigrationError for 002, got %#v", err)
	}
	var dbErr *DatabaseError
	if !errors.As(err, &dbErr) || dbErr.Operation != "execute statement 2" {
		t.Fatalf("expected DatabaseError for the second statement, got %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected first migration to stay applied, got %d", applied)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'rooms'").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 0 {
		t.Fatal("expected failed migration to roll back its statements")
	}
}

func TestManager_ChecksumMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	files := fstest.MapFS{
		"001_users.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
	}
	if _, err := newTestManager(t, db, files).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	files["001_users.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY, email TEXT);")}
	_, err := newTestManager(t, db, files).Run(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

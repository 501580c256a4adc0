// Package sqlstore implements persistence.Store on database/sql for SQLite,
// PostgreSQL and MySQL. Booking invariants are backed by the cell_day_claims
// and user_day_claims tables, whose primary keys reject a second writer for
// the same cell half-day or user day.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/persistence/sqlstore/migration"
)

//go:embed migrations
var migrationFiles embed.FS

// Config describes how to reach the database.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a persistence.Store backed by a SQL database.
type Store struct {
	db     *sql.DB
	d      dialect
	logger *slog.Logger
}

var _ persistence.Store = (*Store)(nil)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlstore: %s DSN cannot be empty", d.name())
	}

	db, err := d.open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name(), err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", d.name(), err)
	}

	return &Store{db: db, d: d, logger: logger.With("component", "sqlstore", "driver", d.name())}, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the dialect name in use.
func (s *Store) Driver() string { return s.d.name() }

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrations() (*migration.Manager, error) {
	source, err := fs.Sub(migrationFiles, "migrations/"+s.d.name())
	if err != nil {
		return nil, fmt.Errorf("failed to load %s migrations: %w", s.d.name(), err)
	}
	return migration.NewManager(source, migration.NewExecutor(s.db, s.d.rebind), s.logger), nil
}

// Migrate applies pending schema migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	manager, err := s.migrations()
	if err != nil {
		return 0, err
	}
	return manager.Run(ctx)
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Store) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager, err := s.migrations()
	if err != nil {
		return migration.Status{}, err
	}
	return manager.Status(ctx)
}

// withTransaction runs fn inside a transaction. An error or panic from fn rolls back.
func (s *Store) withTransaction(ctx context.Context, fn func(q querier) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WarnContext(ctx, "rollback failed", "error", rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", s.mapError(err))
	}
	return nil
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// expectAffected turns a zero-row update into ErrNotFound.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// Package bootstrap turns a loaded configuration into a running engine: the
// store selected by the database settings and the services wired over it.
package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/config"
	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/persistence/memory"
	"github.com/example/desk-booking/internal/persistence/sqlstore"
	"github.com/example/desk-booking/internal/persistence/sqlstore/migration"
)

// ErrNoMigrations is returned when the configured store has no schema to manage.
var ErrNoMigrations = errors.New("bootstrap: store has no migrations")

// OpenStore opens the store selected by cfg. A sqlite DSN that does not start
// with "file:" is taken as a path and gets the default pragmas.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (persistence.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "memory" {
		return memory.New(), nil
	}

	dsn := strings.TrimSpace(cfg.DSN)
	if driver == sqlstore.DriverSQLite && !strings.HasPrefix(dsn, "file:") {
		sqliteCfg := sqlstore.DefaultSQLiteConfig(dsn)
		if err := sqliteCfg.EnsureDir(); err != nil {
			return nil, err
		}
		rendered, err := sqliteCfg.DSN()
		if err != nil {
			return nil, fmt.Errorf("invalid sqlite settings: %w", err)
		}
		dsn = rendered
	}

	return sqlstore.Open(ctx, sqlstore.Config{
		Driver:          driver,
		DSN:             dsn,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
}

type migrator interface {
	Migrate(ctx context.Context) (int, error)
	MigrationStatus(ctx context.Context) (migration.Status, error)
}

// Migrate applies pending migrations. Stores without a schema report zero.
func Migrate(ctx context.Context, store persistence.Store) (int, error) {
	m, ok := store.(migrator)
	if !ok {
		return 0, nil
	}
	return m.Migrate(ctx)
}

// MigrationStatus reports the applied and pending migrations of store.
func MigrationStatus(ctx context.Context, store persistence.Store) (migration.Status, error) {
	m, ok := store.(migrator)
	if !ok {
		return migration.Status{}, ErrNoMigrations
	}
	return m.MigrationStatus(ctx)
}

// Services bundles the engine wired over one store.
type Services struct {
	Access      *application.AccessResolver
	Cache       *application.AvailabilityCache
	Bookings    *application.BookingService
	Assignments *application.AssignmentService
	Directory   *application.DirectoryService
	Auth        *application.AuthService
	Dispatcher  *application.Dispatcher
}

// Options overrides the process defaults of NewServices.
type Options struct {
	IDGenerator    func() string
	TokenGenerator func() string
	Now            func() time.Time
}

// NewServices wires every service over store using the booking and session
// settings of cfg.
func NewServices(store persistence.Store, cfg config.Config, logger *slog.Logger, opts Options) Services {
	ids := opts.IDGenerator
	if ids == nil {
		ids = uuid.NewString
	}
	tokens := opts.TokenGenerator
	if tokens == nil {
		tokens = func() string { return randomHex(32) }
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	access := application.NewAccessResolver(store)
	cache := application.NewAvailabilityCache(cfg.Booking.CacheSize, cfg.Booking.CacheTTL)

	bookings := application.NewBookingService(application.BookingServiceDeps{
		Store:        store,
		Cells:        store,
		Users:        store,
		Access:       access,
		Cache:        cache,
		IDGenerator:  ids,
		Now:          now,
		MaxRangeDays: cfg.Booking.MaxRangeDays,
		Logger:       logger,
	})
	assignments := application.NewAssignmentService(application.AssignmentServiceDeps{
		Store:        store,
		Cells:        store,
		Users:        store,
		Access:       access,
		Cache:        cache,
		IDGenerator:  ids,
		Now:          now,
		MaxRangeDays: cfg.Booking.MaxRangeDays,
		Logger:       logger,
	})

	return Services{
		Access:      access,
		Cache:       cache,
		Bookings:    bookings,
		Assignments: assignments,
		Directory:   application.NewDirectoryServiceWithLogger(store, cache, ids, now, logger),
		Auth:        application.NewAuthServiceWithLogger(store, store, []byte(cfg.Session.Secret), tokens, ids, now, cfg.Session.TTL, logger),
		Dispatcher:  application.NewDispatcher(bookings, assignments, logger),
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		panic(fmt.Sprintf("bootstrap: read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

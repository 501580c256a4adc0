package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/bootstrap"
	"github.com/example/desk-booking/internal/config"
	"github.com/example/desk-booking/internal/logging"
	"github.com/example/desk-booking/internal/persistence"
)

// operator is the principal CLI administration runs as.
var operator = application.Principal{UserID: "cli", Role: application.RoleAdmin}

// runtime is handed to every command's Run method.
type runtime struct {
	globals *Globals
	out     io.Writer
	errOut  io.Writer
	// lookupEnv overrides os.LookupEnv in tests.
	lookupEnv func(string) (string, bool)
}

type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    persistence.Store
	services bootstrap.Services
	closers  []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// open loads the configuration, builds the logger and opens the store. Logs
// go to stderr unless a log file is configured, keeping stdout for results.
func (rt *runtime) open(ctx context.Context) (*app, error) {
	cfg, err := config.Load(config.Options{
		File:      rt.globals.Config,
		EnvFile:   rt.globals.EnvFile,
		LookupEnv: rt.lookupEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Output:     rt.errOut,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		services: bootstrap.NewServices(store, cfg, logger, bootstrap.Options{}),
		closers:  []io.Closer{logCloser, store},
	}, nil
}

// openMigrated opens the app and brings the schema up to date.
func (rt *runtime) openMigrated(ctx context.Context) (*app, error) {
	a, err := rt.open(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := bootstrap.Migrate(ctx, a.store)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if applied > 0 {
		a.logger.InfoContext(ctx, "migrations applied", "count", applied)
	}
	return a, nil
}

func (rt *runtime) printJSON(v any) error {
	enc := json.NewEncoder(rt.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
)

// Manager orchestrates scanning and applying migrations.
type Manager struct {
	source   fs.FS
	executor *Executor
	logger   *slog.Logger
}

// NewManager creates a Manager reading migrations from source.
func NewManager(source fs.FS, executor *Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{source: source, executor: executor, logger: logger.With("component", "migration")}
}

// Status reports applied and pending migrations, verifying the checksum of
// every applied file that is still present.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}
	available, err := ScanMigrations(m.source)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedByVersion[a.Version] = a
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, mig := range available {
		a, ok := appliedByVersion[mig.Version]
		if !ok {
			status.Pending = append(status.Pending, mig)
			continue
		}
		if a.Checksum != mig.Checksum {
			return Status{}, NewMigrationError(mig.Version, mig.FilePath, "verify checksum",
				fmt.Errorf("%w: recorded %s, file %s", ErrChecksumMismatch, a.Checksum, mig.Checksum))
		}
	}
	return status, nil
}

// Run applies every pending migration in version order and returns how many ran.
func (m *Manager) Run(ctx context.Context) (int, error) {
	status, err := m.Status(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine migration status", "error", err)
		return 0, err
	}
	if len(status.Pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return 0, nil
	}

	for i, mig := range status.Pending {
		logger := m.logger.With("version", mig.Version, "description", mig.Description)
		if err := m.executor.ExecuteMigration(ctx, mig); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return i, NewMigrationError(mig.Version, mig.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		logger.InfoContext(ctx, "migration applied", "position", i+1, "total", len(status.Pending))
	}
	return len(status.Pending), nil
}

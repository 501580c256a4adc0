package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Executor runs migrations against a database. Bind rewrites "?" placeholders
// for drivers that need a different style; nil leaves queries untouched.
type Executor struct {
	db   *sql.DB
	bind func(string) string
	now  func() time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(db *sql.DB, bind func(string) string) *Executor {
	if bind == nil {
		bind = func(q string) string { return q }
	}
	return &Executor{db: db, bind: bind, now: time.Now}
}

const versionTableDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version VARCHAR(32) PRIMARY KEY,
	applied_at VARCHAR(40) NOT NULL,
	checksum VARCHAR(64) NOT NULL,
	execution_time_ms BIGINT NOT NULL
)`

// InitializeVersionTable creates schema_migrations if it does not exist.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, versionTableDDL); err != nil {
		return NewDatabaseError("", versionTableDDL, "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of m and records it, all in one transaction.
func (e *Executor) ExecuteMigration(ctx context.Context, m Migration) (err error) {
	started := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError(m.Version, "", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(m.SQL) {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = NewDatabaseError(m.Version, stmt, fmt.Sprintf("execute statement %d", i+1), execErr)
			return err
		}
	}

	insert := e.bind(`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`)
	elapsed := e.now().Sub(started)
	if _, execErr := tx.ExecContext(ctx, insert, m.Version, e.now().UTC().Format(time.RFC3339), m.Checksum, elapsed.Milliseconds()); execErr != nil {
		err = NewDatabaseError(m.Version, insert, "record migration", execErr)
		return err
	}

	if err = tx.Commit(); err != nil {
		err = NewDatabaseError(m.Version, "", "commit transaction", err)
		return err
	}
	return nil
}

// AppliedMigrations lists the version table ordered by version.
func (e *Executor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	const query = `SELECT version, applied_at, execution_time_ms, checksum FROM schema_migrations ORDER BY version ASC`

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, NewDatabaseError("", query, "get applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			version, appliedAt, checksum string
			elapsedMs                    int64
		)
		if err := rows.Scan(&version, &appliedAt, &elapsedMs, &checksum); err != nil {
			return nil, NewDatabaseError("", query, "scan applied migration", err)
		}
		at, parseErr := time.Parse(time.RFC3339, appliedAt)
		if parseErr != nil {
			return nil, NewDatabaseError(version, query, "parse applied_at", parseErr)
		}
		applied = append(applied, AppliedMigration{
			Version:       version,
			AppliedAt:     at,
			ExecutionTime: time.Duration(elapsedMs) * time.Millisecond,
			Checksum:      checksum,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("", query, "iterate applied migrations", err)
	}
	return applied, nil
}

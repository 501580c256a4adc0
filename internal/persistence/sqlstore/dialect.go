package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// dialect captures what differs between the supported databases.
type dialect interface {
	name() string
	open(dsn string) (*sql.DB, error)
	// rebind rewrites "?" placeholders into the driver's style.
	rebind(query string) string
	// uniqueViolation reports whether err is a unique or primary key violation
	// and returns the text naming the violated key.
	uniqueViolation(err error) (string, bool)
	// upsertAccess returns the statement, in "?" form, that inserts or updates a room grant.
	upsertAccess() string
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3":
		return sqliteDialect{}, nil
	case DriverPostgres, "postgresql", "pg":
		return postgresDialect{}, nil
	case DriverMySQL:
		return mysqlDialect{}, nil
	}
	return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return DriverSQLite }

func (sqliteDialect) open(dsn string) (*sql.DB, error) {
	return sql.Open("sqlite", dsn)
}

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) uniqueViolation(err error) (string, bool) {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return sqliteErr.Error(), true
		}
		return "", false
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return msg, true
	}
	return "", false
}

func (sqliteDialect) upsertAccess() string {
	return `INSERT INTO room_access (room_id, user_id, role, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET role = excluded.role`
}

type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgres }

func (postgresDialect) open(dsn string) (*sql.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func (postgresDialect) rebind(query string) string { return rebindDollar(query) }

func (postgresDialect) uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint + " " + pqErr.Message, true
	}
	return "", false
}

func (postgresDialect) upsertAccess() string {
	return `INSERT INTO room_access (room_id, user_id, role, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET role = EXCLUDED.role`
}

type mysqlDialect struct{}

func (mysqlDialect) name() string { return DriverMySQL }

func (mysqlDialect) open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql connection string: %w", err)
	}
	// Scans go through strings; DATETIME parsing stays off.
	cfg.ParseTime = false
	cfg.MultiStatements = false
	// Rows affected counts matched rows, as the other drivers do.
	cfg.ClientFoundRows = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func (mysqlDialect) rebind(query string) string { return query }

func (mysqlDialect) uniqueViolation(err error) (string, bool) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return myErr.Message, true
	}
	return "", false
}

func (mysqlDialect) upsertAccess() string {
	return `INSERT INTO room_access (room_id, user_id, role, created_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE role = VALUES(role)`
}

// rebindDollar turns positional "?" markers into $1, $2, ... Queries in this
// package never contain literal question marks.
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

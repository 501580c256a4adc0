package sqlstore

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SQLiteConfig holds the connection pragmas applied to every SQLite connection.
type SQLiteConfig struct {
	Path              string
	BusyTimeout       time.Duration
	EnableForeignKeys bool
	JournalMode       string
	Synchronous       string
	CacheSize         int
}

// DefaultSQLiteConfig returns settings suited to a server process.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:              path,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		CacheSize:         -2000,
	}
}

var (
	validJournalModes = map[string]bool{"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	validSyncModes    = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
)

// Validate checks the pragma values.
func (c SQLiteConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("sqlite path cannot be empty")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("BusyTimeout cannot be negative")
	}
	if c.JournalMode != "" && !validJournalModes[strings.ToUpper(c.JournalMode)] {
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}
	if c.Synchronous != "" && !validSyncModes[strings.ToUpper(c.Synchronous)] {
		return fmt.Errorf("invalid synchronous mode: %s", c.Synchronous)
	}
	return nil
}

// DSN renders the configuration as a modernc.org/sqlite connection string.
// Pragmas travel in the DSN so every pooled connection gets them, and write
// transactions take the lock up front to avoid upgrade deadlocks.
func (c SQLiteConfig) DSN() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.EnableForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if c.JournalMode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		q.Add("_pragma", fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}
	if c.CacheSize != 0 {
		q.Add("_pragma", fmt.Sprintf("cache_size(%d)", c.CacheSize))
	}
	q.Set("_txlock", "immediate")

	return "file:" + c.Path + "?" + q.Encode(), nil
}

// EnsureDir creates the directory holding the database file.
func (c SQLiteConfig) EnsureDir() error {
	if c.Path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

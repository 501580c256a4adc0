// Package migration applies versioned SQL files to a database/sql handle.
//
// Files are read from an fs.FS (normally an embed.FS per dialect) and must be
// named {version}_{description}.sql. Each file runs in its own transaction and
// is recorded in schema_migrations together with a SHA-256 checksum; a file
// whose content changed after it was applied stops the run.
package migration

// Package storage is the conversion ledger: an embedded SQLite database
// recording run history and the fingerprints of input files already
// converted, so re-running over a growing export directory skips work.
//
// The ledger is an optional convenience. Callers treat every failure here
// as a warning; a conversion never aborts because its bookkeeping failed.
package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the ledger database and provides repository methods.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path, creating parent directories
// and applying pending schema migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// modernc's driver serializes writers itself, but holding a single
	// connection avoids SQLITE_BUSY when MCP tools run concurrently.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

// Close closes the ledger database.
func (db *DB) Close() error {
	return db.db.Close()
}

// runMigrations applies all pending migrations from the embedded set.
func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("preparing migrator: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

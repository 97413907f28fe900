// Package database provides database setup, models, and the data access layer
// (Store) for claims, their instances and the system parameter documents.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/checkmate/checkmate/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

const defaultPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Open connects to the registry database at path and migrates it to the
// latest schema. A path without a query string gets foreign keys and a busy
// timeout; one with a query string is used as given.
func Open(path string, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	file, dsn := splitDSN(path)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", file, err)
	}
	// Claim creation relies on a single writer.
	db.SetMaxOpenConns(1)

	version, err := migrateUp(db.DB, file)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to migrate %s: %w", file, err), db.Close())
	}

	logger.Info("Database ready", "path", file, "schema_version", version)
	return db, nil
}

// SchemaVersion returns the last applied migration.
func SchemaVersion(db *sqlx.DB) (uint, error) {
	var version uint
	if err := db.Get(&version, `SELECT version FROM schema_migrations LIMIT 1`); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func migrateUp(db *sql.DB, name string) (uint, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: name})
	if err != nil {
		return 0, fmt.Errorf("create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// splitDSN returns the database file named by path and the DSN to open it with.
func splitDSN(path string) (file, dsn string) {
	file, _, hasQuery := strings.Cut(strings.TrimPrefix(path, "file:"), "?")
	if hasQuery {
		return file, path
	}
	return file, path + "?" + defaultPragmas
}

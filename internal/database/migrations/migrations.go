// Package migrations bootstraps the index's base schema through
// golang-migrate, the teacher's own migration library. This only
// covers the versioned, one-time CREATE-IF-NOT-EXISTS batch (tables,
// indexes, the FTS5 virtual table); the additive nullable-column pass
// spec.md §4.4 requires on every open is a separate, introspective
// step (see database.ensureAdditiveColumns) that a versioned migration
// runner isn't shaped for — golang-migrate applies numbered steps once
// each, it doesn't re-probe schema state on every call.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// Apply runs every pending migration against db. It is safe to call on
// every open: once the schema is current, it is a no-op.
func Apply(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("applying schema migrations: %w", err)
	}
	return nil
}

// newMigrate creates a new migrate instance for the given database.
// The caller owns db and closing m does not close it.
func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migration files: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("wrapping index connection for migration: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("building migrate instance: %w", err)
	}
	return m, nil
}

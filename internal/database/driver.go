// Package database implements the index: the SQLite-backed, rebuildable
// relational cache the repository queries, plus the driver, schema
// manager, and replay engine that keep it consistent with the
// append-only log.
package database

import (
	"database/sql"
	"errors"
	"fmt"

	"jwz/internal/store"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrKind classifies a driver-level failure. Non-driver errors
// (validation, not-found, etc.) use the sentinels in internal/store
// instead.
type ErrKind int

const (
	// KindEngineError covers every non-OK SQLite result code that isn't
	// a busy/locked condition.
	KindEngineError ErrKind = iota
	// KindBusy covers SQLITE_BUSY and SQLITE_LOCKED, including extended
	// codes whose low byte matches either primary code.
	KindBusy
)

// Driver is a thin adapter over the embedded SQL engine: open, execute,
// prepare, and typed binds/reads all go through Go's database/sql,
// which already composes prepare+bind+step+finalize into
// Exec/Query/Scan/Close — layering a second, C-API-shaped wrapper
// underneath that would not be idiomatic Go. What this type adds on
// top is the one piece database/sql doesn't give you: classifying
// busy/locked engine errors into a distinct kind so callers can retry.
type Driver struct {
	DB   *sql.DB
	path string
}

// openDriver opens path read-write (creating it if missing) and
// configures the pragmas spec.md §4.1 treats as contracts: WAL
// journaling, NORMAL synchronous, a 300s busy timeout, in-memory temp
// store, and foreign keys enforced.
func openDriver(path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 300000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	return &Driver{DB: db, path: path}, nil
}

// Path returns the file path the driver was opened with.
func (d *Driver) Path() string { return d.path }

// Close closes the underlying connection pool.
func (d *Driver) Close() error { return d.DB.Close() }

// IsBusy reports whether err (or something it wraps) is a SQLite
// busy/locked condition.
func IsBusy(err error) bool {
	return ClassifyError(err) == KindBusy
}

// ClassifyError maps a raw driver error to its ErrKind. Extended codes
// are checked by primary (low-byte) code, per spec.md §4.1.
func ClassifyError(err error) ErrKind {
	if err == nil {
		return KindEngineError
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return KindBusy
		}
		primary := sqlite3.ErrNo(int(sqliteErr.ExtendedCode) & 0xFF)
		if primary == sqlite3.ErrBusy || primary == sqlite3.ErrLocked {
			return KindBusy
		}
	}
	return KindEngineError
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE/PRIMARY KEY
// constraint failure, the signal the repository uses to turn a
// duplicate topic name into TopicExists.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func busyExhaustedError(last error) error {
	return fmt.Errorf("%w: exhausted retry budget: %v", store.ErrDatabaseBusy, last)
}

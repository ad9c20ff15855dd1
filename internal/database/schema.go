package database

import (
	"database/sql"

	"jwz/internal/database/migrations"
)

// additiveColumns are the nullable message columns the schema manager
// adds on every open if missing, per spec.md §4.4. Column removal and
// type change are explicit non-goals; this list only ever grows.
var additiveColumns = []struct {
	name string
	ddl  string
}{
	{"sender_id", "TEXT"},
	{"sender_name", "TEXT"},
	{"sender_model", "TEXT"},
	{"sender_role", "TEXT"},
	{"git_oid", "TEXT"},
	{"git_head", "TEXT"},
	{"git_dirty", "INTEGER"},
	{"git_prefix", "TEXT"},
}

// ensureSchema brings db up to date: the versioned base tables via
// golang-migrate, then the additive nullable-column pass that a
// versioned migration can't express (it must re-probe actual column
// state every time, not just once per version bump).
func ensureSchema(db *sql.DB) error {
	if err := migrations.Apply(db); err != nil {
		return err
	}
	if err := ensureAdditiveColumns(db); err != nil {
		return err
	}
	return ensureSenderIndex(db)
}

func ensureAdditiveColumns(db *sql.DB) error {
	existing, err := tableColumns(db, "messages")
	if err != nil {
		return err
	}

	for _, col := range additiveColumns {
		if existing[col.name] {
			continue
		}
		if _, err := db.Exec("ALTER TABLE messages ADD COLUMN " + col.name + " " + col.ddl); err != nil {
			return err
		}
	}
	return nil
}

func ensureSenderIndex(db *sql.DB) error {
	_, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id)")
	return err
}

// tableColumns returns the set of column names currently present on
// table, via SQLite's schema-introspection pragma. There is no library
// in this module's dependency corpus for PRAGMA-level introspection —
// golang-migrate only tracks a single version number, it has no notion
// of "what columns does this table have right now" — so this talks to
// database/sql directly.
func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

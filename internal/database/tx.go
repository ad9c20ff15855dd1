package database

import (
	"context"
	"database/sql"
)

// withImmediateTx runs fn against a dedicated connection inside a
// BEGIN IMMEDIATE/COMMIT block. A dedicated connection is required
// because database/sql's pool does not otherwise guarantee that BEGIN,
// the statements in between, and COMMIT all land on the same
// underlying SQLite connection.
//
// Per spec.md §4.1, only the boundary statements are retried on busy:
// BEGIN IMMEDIATE (acquiring the write lock) and COMMIT (flushing it).
// Once BEGIN IMMEDIATE succeeds this process holds SQLite's reserved
// lock, so statements run by fn do not themselves contend for it; if
// one still fails it is surfaced immediately rather than retried, and
// the transaction is rolled back.
func (idx *Index) withImmediateTx(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := idx.driver.DB.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = idx.retry.Do(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		return err
	})
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if err := idx.retry.Do(func() error {
		_, err := conn.ExecContext(ctx, "COMMIT")
		return err
	}); err != nil {
		return err
	}
	committed = true
	return nil
}

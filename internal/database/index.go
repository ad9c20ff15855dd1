package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jwz/internal/store"
)

// metaOffsetKey is the meta row that tracks how much of the
// append-only log has been replayed into this index. See spec.md §4.5.
const metaOffsetKey = "jsonl_offset"

// Index is the SQLite-backed relational cache: spec.md §2's "query
// cache + FTS5 search" half of the dual representation. It never
// originates data on its own; every row it holds is either replayed
// from the log or staged by the repository in the same transaction as
// a log append.
type Index struct {
	driver *Driver
	retry  RetryPolicy
}

// Open opens (creating if needed) the SQLite file at path, brings its
// schema up to date, and returns a ready Index.
func Open(path string, retry RetryPolicy) (*Index, error) {
	driver, err := openDriver(path)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(driver.DB); err != nil {
		driver.Close()
		return nil, fmt.Errorf("preparing index schema: %w", err)
	}
	return &Index{driver: driver, retry: retry}, nil
}

// Close releases the underlying connection pool.
func (idx *Index) Close() error { return idx.driver.Close() }

// DB exposes the underlying pool for callers (the replay engine) that
// need to run ad hoc statements outside Index's own API.
func (idx *Index) DB() *sql.DB { return idx.driver.DB }

// ---- topics ----

// InsertTopic stores a new topic row in its own transaction. Used
// directly by tests; the repository instead composes InsertTopicRow
// inside its own Transact call so the log append lands in the same
// transaction as the row insert.
func (idx *Index) InsertTopic(ctx context.Context, t store.Topic) error {
	return idx.withImmediateTx(ctx, func(conn *sql.Conn) error {
		return InsertTopicRow(ctx, conn, t)
	})
}

// InsertTopicRow inserts a topic row on an existing connection/
// transaction. It returns the raw driver error un-wrapped so the
// caller can classify a unique-constraint violation into TopicExists.
func InsertTopicRow(ctx context.Context, conn *sql.Conn, t store.Topic) error {
	_, err := conn.ExecContext(ctx,
		"INSERT INTO topics (id, name, description, created_at) VALUES (?, ?, ?, ?)",
		t.ID, t.Name, t.Description, t.CreatedAt.UnixMilli())
	return err
}

// ApplyTopicRecord applies a topic record to an in-progress replay
// transaction with INSERT OR IGNORE semantics, so re-applying a log
// suffix that overlaps an earlier replay is a no-op rather than a
// unique-constraint error.
func ApplyTopicRecord(ctx context.Context, conn *sql.Conn, t store.Topic) error {
	_, err := conn.ExecContext(ctx,
		"INSERT OR IGNORE INTO topics (id, name, description, created_at) VALUES (?, ?, ?, ?)",
		t.ID, t.Name, t.Description, t.CreatedAt.UnixMilli())
	return err
}

func scanTopic(row interface {
	Scan(dest ...any) error
}) (store.Topic, error) {
	var t store.Topic
	var createdAt int64
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &createdAt); err != nil {
		return store.Topic{}, err
	}
	t.CreatedAt = time.UnixMilli(createdAt)
	return t, nil
}

// FindTopicByName looks up a topic by its exact, already-trimmed name.
func (idx *Index) FindTopicByName(ctx context.Context, name string) (store.Topic, error) {
	row := idx.driver.DB.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM topics WHERE name = ?", name)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Topic{}, store.ErrTopicNotFound
	}
	if err != nil {
		return store.Topic{}, err
	}
	return t, nil
}

// FindTopicByID looks up a topic by its identifier.
func (idx *Index) FindTopicByID(ctx context.Context, id string) (store.Topic, error) {
	row := idx.driver.DB.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM topics WHERE id = ?", id)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Topic{}, store.ErrTopicNotFound
	}
	if err != nil {
		return store.Topic{}, err
	}
	return t, nil
}

// ListTopics returns every topic, ordered by creation time.
func (idx *Index) ListTopics(ctx context.Context) ([]store.Topic, error) {
	rows, err := idx.driver.DB.QueryContext(ctx,
		"SELECT id, name, description, created_at FROM topics ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- messages ----

const messageColumns = `id, topic_id, parent_id, body, created_at,
	sender_id, sender_name, sender_model, sender_role,
	git_oid, git_head, git_dirty, git_prefix`

// InsertMessage inserts a new message row and its FTS shadow entry in
// one transaction, using the SQLite rowid (not the TEXT id) as the FTS
// content_rowid so last_insert_rowid() can feed it directly. Used
// directly by tests; the repository instead composes InsertMessageRow
// inside its own Transact call.
func (idx *Index) InsertMessage(ctx context.Context, m store.Message) error {
	return idx.withImmediateTx(ctx, func(conn *sql.Conn) error {
		return InsertMessageRow(ctx, conn, m)
	})
}

// InsertMessageRow inserts a message row and its FTS shadow entry on
// an existing connection/transaction, returning the raw driver error
// un-wrapped so the caller can classify failures (e.g. a missing
// topic/parent foreign key).
func InsertMessageRow(ctx context.Context, conn *sql.Conn, m store.Message) error {
	return insertMessageAndFTS(ctx, conn, m)
}

// ApplyMessageRecord applies a message record to an in-progress replay
// transaction with INSERT OR IGNORE semantics, feeding the FTS shadow
// table only when a row was actually new.
func ApplyMessageRecord(ctx context.Context, conn *sql.Conn, m store.Message) error {
	res, err := conn.ExecContext(ctx, insertMessageSQL("OR IGNORE"), messageArgs(m)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// already applied in an earlier replay; nothing new to index.
		return nil
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		"INSERT INTO messages_fts (rowid, body) VALUES (?, ?)", rowID, m.Body)
	return err
}

func insertMessageAndFTS(ctx context.Context, conn *sql.Conn, m store.Message) error {
	res, err := conn.ExecContext(ctx, insertMessageSQL(""), messageArgs(m)...)
	if err != nil {
		return err
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		"INSERT INTO messages_fts (rowid, body) VALUES (?, ?)", rowID, m.Body)
	return err
}

func insertMessageSQL(or string) string {
	verb := "INSERT"
	if or != "" {
		verb = "INSERT " + or
	}
	return verb + ` INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
}

func messageArgs(m store.Message) []any {
	var parentID any
	if m.ParentID != "" {
		parentID = m.ParentID
	}

	var senderID, senderName, senderModel, senderRole any
	if m.Sender != nil {
		senderID = nullIfEmpty(m.Sender.Identity)
		senderName = nullIfEmpty(m.Sender.Name)
		senderModel = nullIfEmpty(m.Sender.Model)
		senderRole = nullIfEmpty(m.Sender.Role)
	}

	var gitOID, gitHead, gitPrefix any
	var gitDirty any
	if m.Git != nil {
		gitOID = nullIfEmpty(m.Git.CommitOID)
		gitHead = nullIfEmpty(m.Git.Head)
		gitPrefix = nullIfEmpty(m.Git.Prefix)
		gitDirty = m.Git.Dirty
	}

	return []any{
		m.ID, m.TopicID, parentID, m.Body, m.CreatedAt.UnixMilli(),
		senderID, senderName, senderModel, senderRole,
		gitOID, gitHead, gitDirty, gitPrefix,
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanMessage(row interface {
	Scan(dest ...any) error
}) (store.Message, error) {
	var m store.Message
	var parentID sql.NullString
	var createdAt int64
	var senderID, senderName, senderModel, senderRole sql.NullString
	var gitOID, gitHead, gitPrefix sql.NullString
	var gitDirty sql.NullBool

	err := row.Scan(&m.ID, &m.TopicID, &parentID, &m.Body, &createdAt,
		&senderID, &senderName, &senderModel, &senderRole,
		&gitOID, &gitHead, &gitDirty, &gitPrefix)
	if err != nil {
		return store.Message{}, err
	}

	m.ParentID = parentID.String
	m.CreatedAt = time.UnixMilli(createdAt)

	if senderID.Valid {
		m.Sender = &store.Sender{
			Identity: senderID.String,
			Name:     senderName.String,
			Model:    senderModel.String,
			Role:     senderRole.String,
		}
	}
	if gitOID.Valid || gitHead.Valid || gitPrefix.Valid || gitDirty.Valid {
		m.Git = &store.VersionContext{
			CommitOID: gitOID.String,
			Head:      gitHead.String,
			Dirty:     gitDirty.Bool,
			Prefix:    gitPrefix.String,
		}
	}
	return m, nil
}

// FindMessageByID fetches a single message by its full identifier and
// fills in its derived reply count.
func (idx *Index) FindMessageByID(ctx context.Context, id string) (store.Message, error) {
	row := idx.driver.DB.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Message{}, store.ErrMessageNotFound
	}
	if err != nil {
		return store.Message{}, err
	}
	m.ReplyCount, err = idx.countReplies(ctx, id)
	return m, err
}

// FindMessagesByPrefix returns every message whose id starts with
// prefix, used by the prefix resolver to classify not-found / unique /
// ambiguous. Bounded at 3 rows: the resolver only needs to know
// whether there are zero, one, or "two or more" matches.
func (idx *Index) FindMessagesByPrefix(ctx context.Context, prefix string) ([]store.Message, error) {
	rows, err := idx.driver.DB.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id LIKE ? || '%' LIMIT 3", prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (idx *Index) countReplies(ctx context.Context, parentID string) (int, error) {
	var n int
	err := idx.driver.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE parent_id = ?", parentID).Scan(&n)
	return n, err
}

// ListRootMessages returns the top-level messages of a topic, newest
// first, each with its reply count.
func (idx *Index) ListRootMessages(ctx context.Context, topicID string, limit int) ([]store.Message, error) {
	rows, err := idx.driver.DB.QueryContext(ctx, `
		SELECT `+messageColumns+`,
			(SELECT COUNT(*) FROM messages c WHERE c.parent_id = m.id) AS reply_count
		FROM messages m
		WHERE m.topic_id = ? AND m.parent_id IS NULL
		ORDER BY m.created_at DESC
		LIMIT ?`, topicID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessagesWithReplyCount(rows)
}

// Replies returns the direct children of parentID, oldest first.
func (idx *Index) Replies(ctx context.Context, parentID string) ([]store.Message, error) {
	rows, err := idx.driver.DB.QueryContext(ctx, `
		SELECT `+messageColumns+`,
			(SELECT COUNT(*) FROM messages c WHERE c.parent_id = m.id) AS reply_count
		FROM messages m
		WHERE m.parent_id = ?
		ORDER BY m.created_at ASC`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessagesWithReplyCount(rows)
}

// Thread returns rootID and every descendant message, ordered by
// creation time (oldest first). Descendants are collected in one
// statement with a WITH RECURSIVE query against parent_id.
func (idx *Index) Thread(ctx context.Context, rootID string) ([]store.Message, error) {
	rows, err := idx.driver.DB.QueryContext(ctx, `
		WITH RECURSIVE descendants(id) AS (
			SELECT id FROM messages WHERE id = ?
			UNION ALL
			SELECT m.id FROM messages m JOIN descendants d ON m.parent_id = d.id
		)
		SELECT `+qualify("m", messageColumns)+`,
			(SELECT COUNT(*) FROM messages c WHERE c.parent_id = m.id) AS reply_count
		FROM messages m
		JOIN descendants d ON d.id = m.id
		ORDER BY m.created_at ASC`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessagesWithReplyCount(rows)
}

func qualify(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanMessagesWithReplyCount(rows *sql.Rows) ([]store.Message, error) {
	var out []store.Message
	for rows.Next() {
		var m store.Message
		var parentID sql.NullString
		var createdAt int64
		var senderID, senderName, senderModel, senderRole sql.NullString
		var gitOID, gitHead, gitPrefix sql.NullString
		var gitDirty sql.NullBool

		err := rows.Scan(&m.ID, &m.TopicID, &parentID, &m.Body, &createdAt,
			&senderID, &senderName, &senderModel, &senderRole,
			&gitOID, &gitHead, &gitDirty, &gitPrefix, &m.ReplyCount)
		if err != nil {
			return nil, err
		}

		m.ParentID = parentID.String
		m.CreatedAt = time.UnixMilli(createdAt)
		if senderID.Valid {
			m.Sender = &store.Sender{Identity: senderID.String, Name: senderName.String, Model: senderModel.String, Role: senderRole.String}
		}
		if gitOID.Valid || gitHead.Valid || gitPrefix.Valid || gitDirty.Valid {
			m.Git = &store.VersionContext{CommitOID: gitOID.String, Head: gitHead.String, Dirty: gitDirty.Bool, Prefix: gitPrefix.String}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---- full text search ----

// Search runs an FTS5 MATCH query over message bodies and returns
// matches ranked by BM25 (ties broken by created_at descending), best
// first. When topicID is non-empty, the topic join happens inside this
// query so the LIMIT window is applied to the already-scoped result
// set rather than truncating it after the fact.
func (idx *Index) Search(ctx context.Context, query, topicID string, limit int) ([]store.Message, error) {
	stmt := `
		SELECT ` + qualify("m", messageColumns) + `
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		WHERE f.body MATCH ?`
	args := []any{sanitizeFTSQuery(query)}
	if topicID != "" {
		stmt += ` AND m.topic_id = ?`
		args = append(args, topicID)
	}
	stmt += `
		ORDER BY bm25(f), m.created_at DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := idx.driver.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// sanitizeFTSQuery wraps the query in double quotes so FTS5's own
// query-syntax operators (AND, OR, NOT, *, -, parentheses...) are
// treated as literal search terms rather than parsed as query syntax.
// A literal double quote is escaped by doubling, matching FTS5's own
// string-literal escaping rule.
func sanitizeFTSQuery(q string) string {
	escaped := strings.ReplaceAll(q, `"`, `""`)
	return `"` + escaped + `"`
}

// ---- blobs ----
//
// Blob bytes are stored gzip-compressed at rest; the content identity
// (spec.md §4.6.5, "<algorithm>:<hex digest>") is always computed over
// the uncompressed bytes by the caller before PutBlob is called, and
// the stored `size` column records the uncompressed length, so
// compression is purely a storage detail that never leaks into the
// schema or the identity scheme.

// PutBlob stores content under id if not already present (content
// addressing makes repeated puts of the same bytes a no-op) and
// returns whether it inserted a new row.
func (idx *Index) PutBlob(ctx context.Context, id string, data []byte, mimeType string, createdAt time.Time) (bool, error) {
	compressed, err := gzipCompress(data)
	if err != nil {
		return false, fmt.Errorf("compressing blob: %w", err)
	}

	var inserted bool
	err = idx.withImmediateTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"INSERT OR IGNORE INTO blobs (id, size, mime_type, created_at, data) VALUES (?, ?, ?, ?, ?)",
			id, len(data), nullIfEmpty(mimeType), createdAt.UnixMilli(), compressed)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		inserted = n > 0
		return err
	})
	return inserted, err
}

// GetBlob fetches a blob's full record and its decompressed bytes.
func (idx *Index) GetBlob(ctx context.Context, id string) (store.Blob, []byte, error) {
	var b store.Blob
	var compressed []byte
	var mimeType sql.NullString
	var createdAt int64

	err := idx.driver.DB.QueryRowContext(ctx,
		"SELECT id, size, mime_type, created_at, data FROM blobs WHERE id = ?", id).
		Scan(&b.ID, &b.Size, &mimeType, &createdAt, &compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Blob{}, nil, store.ErrBlobNotFound
	}
	if err != nil {
		return store.Blob{}, nil, err
	}
	b.MIMEType = mimeType.String
	b.CreatedAt = time.UnixMilli(createdAt)

	data, err := gzipDecompress(compressed)
	if err != nil {
		return store.Blob{}, nil, fmt.Errorf("decompressing blob: %w", err)
	}
	return b, data, nil
}

// BlobInfo fetches blob metadata without its payload.
func (idx *Index) BlobInfo(ctx context.Context, id string) (store.Blob, error) {
	var b store.Blob
	var mimeType sql.NullString
	var createdAt int64

	err := idx.driver.DB.QueryRowContext(ctx,
		"SELECT id, size, mime_type, created_at FROM blobs WHERE id = ?", id).
		Scan(&b.ID, &b.Size, &mimeType, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Blob{}, store.ErrBlobNotFound
	}
	if err != nil {
		return store.Blob{}, err
	}
	b.MIMEType = mimeType.String
	b.CreatedAt = time.UnixMilli(createdAt)
	return b, nil
}

// AttachBlob links an existing blob to a message, replacing the name
// of an existing link for the same (message, blob) pair.
func (idx *Index) AttachBlob(ctx context.Context, a store.Attachment) error {
	return idx.withImmediateTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			"INSERT OR REPLACE INTO attachments (message_id, blob_id, name) VALUES (?, ?, ?)",
			a.MessageID, a.BlobID, nullIfEmpty(a.Name))
		return err
	})
}

// ListAttachments returns every blob attached to messageID.
func (idx *Index) ListAttachments(ctx context.Context, messageID string) ([]store.Attachment, error) {
	rows, err := idx.driver.DB.QueryContext(ctx,
		"SELECT message_id, blob_id, name FROM attachments WHERE message_id = ?", messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Attachment
	for rows.Next() {
		var a store.Attachment
		var name sql.NullString
		if err := rows.Scan(&a.MessageID, &a.BlobID, &name); err != nil {
			return nil, err
		}
		a.Name = name.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- replay offset ----

// Offset returns the byte offset of the log that has been replayed
// into this index, or zero if the meta row has never been written.
func (idx *Index) Offset(ctx context.Context) (int64, error) {
	var value string
	err := idx.driver.DB.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", metaOffsetKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

// SetOffsetTx writes the replay offset within an existing transaction
// connection, so the replay engine can commit new rows and the new
// offset atomically.
func SetOffsetTx(ctx context.Context, conn *sql.Conn, offset int64) error {
	_, err := conn.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		metaOffsetKey, strconv.FormatInt(offset, 10))
	return err
}

// Transact exposes the BEGIN IMMEDIATE/COMMIT envelope directly to
// callers that need more than one statement to land atomically: the
// replay engine (a batch of log records plus the new offset) and the
// repository (a relational insert, a log append, and the new offset,
// per spec.md §8 P2).
func (idx *Index) Transact(ctx context.Context, fn func(conn *sql.Conn) error) error {
	return idx.withImmediateTx(ctx, fn)
}

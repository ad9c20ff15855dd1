// Package replay implements the replay engine of spec.md §4.5: it
// keeps the SQLite index consistent with the append-only log by
// ingesting whatever suffix of the log the index has not yet observed.
package replay

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"jwz/internal/database"
	"jwz/internal/ledger"
	"jwz/internal/store"
)

// Apply brings idx up to date with log. It is safe to call on every
// store open and is the only way rows enter the index other than a
// fresh write through the repository.
func Apply(ctx context.Context, idx *database.Index, log *ledger.Log) error {
	offset, err := idx.Offset(ctx)
	if err != nil {
		return fmt.Errorf("reading replay offset: %w", err)
	}

	data, size, truncated, err := log.ReadSince(offset)
	if err != nil {
		return fmt.Errorf("reading log suffix: %w", err)
	}

	clearFirst := false
	if truncated {
		clearFirst = true
		offset = 0
		data, size, _, err = log.ReadSince(0)
		if err != nil {
			return fmt.Errorf("reading log from start after truncation: %w", err)
		}
	}

	if size == offset && !clearFirst {
		return nil
	}

	topics, messages := parseLines(data)

	return idx.Transact(ctx, func(conn *sql.Conn) error {
		if clearFirst {
			if err := clearIndexedTables(ctx, conn); err != nil {
				return err
			}
		}
		for _, t := range topics {
			if err := database.ApplyTopicRecord(ctx, conn, t); err != nil {
				return err
			}
		}
		for _, m := range messages {
			if err := database.ApplyMessageRecord(ctx, conn, m); err != nil {
				return err
			}
		}
		return database.SetOffsetTx(ctx, conn, offset+int64(len(data)))
	})
}

func clearIndexedTables(ctx context.Context, conn *sql.Conn) error {
	stmts := []string{
		"DELETE FROM messages_fts",
		"DELETE FROM messages",
		"DELETE FROM topics",
	}
	for _, s := range stmts {
		if _, err := conn.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// parseLines splits data into complete (newline-terminated) lines,
// discards a dangling trailing partial line, and parses each complete
// line as either a topic or message record, discarding any line that
// fails to parse, per spec.md §4.3's "partial writes are the only
// permitted failure mode" rule.
func parseLines(data []byte) ([]store.Topic, []store.Message) {
	var topics []store.Topic
	var messages []store.Message

	lines := bytes.Split(data, []byte("\n"))
	// The final element is either empty (data ended with \n, the
	// common case) or a dangling partial line; either way it is not a
	// complete record and must be skipped.
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}

	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			continue
		}
		switch probe.Type {
		case "topic":
			var r ledger.TopicRecord
			if err := json.Unmarshal(line, &r); err != nil {
				continue
			}
			topics = append(topics, topicFromRecord(r))
		case "message":
			var r ledger.MessageRecord
			if err := json.Unmarshal(line, &r); err != nil {
				continue
			}
			messages = append(messages, messageFromRecord(r))
		}
	}
	return topics, messages
}

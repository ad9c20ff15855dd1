package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"jwz/internal/store"
)

func TestApplyRecords_IdempotentUnderReplayTx(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	topic := store.Topic{ID: "t1", Name: "general", CreatedAt: time.Unix(100, 0)}
	msg := store.Message{ID: "m1", TopicID: "t1", Body: "hello", CreatedAt: time.Unix(101, 0)}

	apply := func() error {
		return idx.Transact(ctx, func(conn *sql.Conn) error {
			if err := ApplyTopicRecord(ctx, conn, topic); err != nil {
				return err
			}
			if err := ApplyMessageRecord(ctx, conn, msg); err != nil {
				return err
			}
			return SetOffsetTx(ctx, conn, 512)
		})
	}

	if err := apply(); err != nil {
		t.Fatalf("first apply() error = %v", err)
	}
	// Re-applying the same records (as happens when the log suffix
	// overlaps a previous replay window) must not error or duplicate rows.
	if err := apply(); err != nil {
		t.Fatalf("second apply() error = %v", err)
	}

	topics, err := idx.ListTopics(ctx)
	if err != nil {
		t.Fatalf("ListTopics() error = %v", err)
	}
	if len(topics) != 1 {
		t.Errorf("len(topics) = %d, want 1", len(topics))
	}

	got, err := idx.FindMessageByID(ctx, "m1")
	if err != nil {
		t.Fatalf("FindMessageByID() error = %v", err)
	}
	if got.Body != "hello" {
		t.Errorf("Body = %q, want hello", got.Body)
	}

	offset, err := idx.Offset(ctx)
	if err != nil {
		t.Fatalf("Offset() error = %v", err)
	}
	if offset != 512 {
		t.Errorf("Offset() = %d, want 512", offset)
	}

	results, err := idx.Search(ctx, "hello", "", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1 (FTS shadow row must not duplicate either)", len(results))
	}
}

func TestTransact_RollsBackOnError(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.Transact(ctx, func(conn *sql.Conn) error {
		topic := store.Topic{ID: "t1", Name: "general", CreatedAt: time.Unix(100, 0)}
		if err := ApplyTopicRecord(ctx, conn, topic); err != nil {
			return err
		}
		return context.DeadlineExceeded
	})
	if err == nil {
		t.Fatal("Transact() error = nil, want propagated error")
	}

	topics, lerr := idx.ListTopics(ctx)
	if lerr != nil {
		t.Fatalf("ListTopics() error = %v", lerr)
	}
	if len(topics) != 0 {
		t.Errorf("len(topics) = %d after rolled-back replay, want 0", len(topics))
	}
}

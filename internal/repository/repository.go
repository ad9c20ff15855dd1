// Package repository implements spec.md §4.6: the public operations
// jwz exposes over a store, each one orchestrating the index and the
// append-only log as a single unit of work.
package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"jwz/internal/database"
	"jwz/internal/ledger"
	"jwz/internal/store"
)

// Repository is the store's public API. It owns no resources itself;
// the index, log, clock and id generator are injected so tests can
// substitute deterministic fakes.
type Repository struct {
	idx   *database.Index
	log   *ledger.Log
	clock store.Clock
	ids   store.IDGenerator
}

// New builds a Repository over an already-open index and log.
func New(idx *database.Index, log *ledger.Log, clock store.Clock, ids store.IDGenerator) *Repository {
	return &Repository{idx: idx, log: log, clock: clock, ids: ids}
}

// CreateTopic implements spec.md §4.6.1.
func (r *Repository) CreateTopic(ctx context.Context, name, description string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", store.ErrEmptyTopicName
	}
	description = strings.TrimSpace(description)

	topic := store.Topic{
		ID:          r.ids.New(),
		Name:        name,
		Description: description,
		CreatedAt:   r.clock.Now(),
	}

	record, err := ledger.EncodeTopic(ledger.TopicRecord{
		ID:          topic.ID,
		Name:        topic.Name,
		Description: topic.Description,
		CreatedAt:   topic.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding topic record: %w", err)
	}

	err = r.idx.Transact(ctx, func(conn *sql.Conn) error {
		if err := database.InsertTopicRow(ctx, conn, topic); err != nil {
			if database.IsUniqueViolation(err) {
				return store.ErrTopicExists
			}
			return err
		}
		newSize, err := r.log.Append(record)
		if err != nil {
			return err
		}
		return database.SetOffsetTx(ctx, conn, newSize)
	})
	if err != nil {
		return "", err
	}
	return topic.ID, nil
}

// CreateMessage implements spec.md §4.6.2.
func (r *Repository) CreateMessage(ctx context.Context, topicName, parentID, body string, sender *store.Sender, git *store.VersionContext) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", store.ErrEmptyMessageBody
	}

	topic, err := r.idx.FindTopicByName(ctx, strings.TrimSpace(topicName))
	if err != nil {
		return "", err
	}

	if parentID != "" {
		resolvedParent, err := resolveMessagePrefix(ctx, r.idx, parentID)
		if err != nil {
			if errors.Is(err, store.ErrMessageNotFound) {
				return "", store.ErrParentNotFound
			}
			return "", err
		}
		parent, err := r.idx.FindMessageByID(ctx, resolvedParent)
		if err != nil {
			return "", err
		}
		if parent.TopicID != topic.ID {
			return "", store.ErrParentNotFound
		}
		parentID = parent.ID
	}

	msg := store.Message{
		ID:        r.ids.New(),
		TopicID:   topic.ID,
		ParentID:  parentID,
		Body:      body,
		CreatedAt: r.clock.Now(),
		Sender:    sender,
		Git:       git,
	}

	record, err := ledger.EncodeMessage(messageToRecord(msg))
	if err != nil {
		return "", fmt.Errorf("encoding message record: %w", err)
	}

	err = r.idx.Transact(ctx, func(conn *sql.Conn) error {
		if err := database.InsertMessageRow(ctx, conn, msg); err != nil {
			return err
		}
		newSize, err := r.log.Append(record)
		if err != nil {
			return err
		}
		return database.SetOffsetTx(ctx, conn, newSize)
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func messageToRecord(m store.Message) ledger.MessageRecord {
	r := ledger.MessageRecord{
		ID:        m.ID,
		TopicID:   m.TopicID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt.UnixMilli(),
	}
	if m.ParentID != "" {
		r.ParentID = &m.ParentID
	}
	if m.Sender != nil {
		r.Sender = ledger.NewSenderRecord(m.Sender.Identity, m.Sender.Name, m.Sender.Model, m.Sender.Role)
	}
	if m.Git != nil {
		r.Git = ledger.NewGitRecord(m.Git.CommitOID, m.Git.Head, m.Git.Dirty, m.Git.Prefix)
	}
	return r
}

// FetchMessage resolves idOrPrefix (§4.7) and returns the message.
func (r *Repository) FetchMessage(ctx context.Context, idOrPrefix string) (store.Message, error) {
	id, err := resolveMessagePrefix(ctx, r.idx, idOrPrefix)
	if err != nil {
		return store.Message{}, err
	}
	return r.idx.FindMessageByID(ctx, id)
}

// ListMessages returns root messages of a topic, newest first.
func (r *Repository) ListMessages(ctx context.Context, topicName string, limit int) ([]store.Message, error) {
	topic, err := r.idx.FindTopicByName(ctx, strings.TrimSpace(topicName))
	if err != nil {
		return nil, err
	}
	return r.idx.ListRootMessages(ctx, topic.ID, limit)
}

// Thread resolves idOrPrefix and returns the root followed by every
// transitive reply, ordered by creation time.
func (r *Repository) Thread(ctx context.Context, idOrPrefix string) ([]store.Message, error) {
	id, err := resolveMessagePrefix(ctx, r.idx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return r.idx.Thread(ctx, id)
}

// Replies resolves idOrPrefix and returns its immediate children,
// oldest first.
func (r *Repository) Replies(ctx context.Context, idOrPrefix string) ([]store.Message, error) {
	id, err := resolveMessagePrefix(ctx, r.idx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return r.idx.Replies(ctx, id)
}

// Search implements spec.md §4.6.4. When topicName is non-empty, the
// topic join happens inside Index.Search's own query, so the result
// limit is applied to the already-scoped set.
func (r *Repository) Search(ctx context.Context, query, topicName string, limit int) ([]store.Message, error) {
	topicName = strings.TrimSpace(topicName)
	var topicID string
	if topicName != "" {
		topic, err := r.idx.FindTopicByName(ctx, topicName)
		if err != nil {
			return nil, err
		}
		topicID = topic.ID
	}
	return r.idx.Search(ctx, query, topicID, limit)
}

// PutBlob computes the SHA-256 digest of data, formats its identity as
// "sha256:<hex>", and stores it if not already present.
func (r *Repository) PutBlob(ctx context.Context, data []byte, mimeType string) (string, error) {
	sum := sha256.Sum256(data)
	id := "sha256:" + hex.EncodeToString(sum[:])
	if _, err := r.idx.PutBlob(ctx, id, data, mimeType, r.clock.Now()); err != nil {
		return "", err
	}
	return id, nil
}

// GetBlob returns a blob's bytes by identity.
func (r *Repository) GetBlob(ctx context.Context, id string) ([]byte, error) {
	_, data, err := r.idx.GetBlob(ctx, id)
	return data, err
}

// FetchBlob returns a blob's metadata by identity.
func (r *Repository) FetchBlob(ctx context.Context, id string) (store.Blob, error) {
	return r.idx.BlobInfo(ctx, id)
}

// AttachBlob links a blob to a message.
func (r *Repository) AttachBlob(ctx context.Context, messageID, blobID, name string) error {
	if _, err := r.idx.BlobInfo(ctx, blobID); err != nil {
		return err
	}
	resolved, err := resolveMessagePrefix(ctx, r.idx, messageID)
	if err != nil {
		return err
	}
	return r.idx.AttachBlob(ctx, store.Attachment{MessageID: resolved, BlobID: blobID, Name: name})
}

// ListAttachments returns every blob attached to a message.
func (r *Repository) ListAttachments(ctx context.Context, messageID string) ([]store.Attachment, error) {
	resolved, err := resolveMessagePrefix(ctx, r.idx, messageID)
	if err != nil {
		return nil, err
	}
	return r.idx.ListAttachments(ctx, resolved)
}

package replay

import (
	"time"

	"jwz/internal/ledger"
	"jwz/internal/store"
)

func topicFromRecord(r ledger.TopicRecord) store.Topic {
	return store.Topic{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   time.UnixMilli(r.CreatedAt),
	}
}

func messageFromRecord(r ledger.MessageRecord) store.Message {
	m := store.Message{
		ID:        r.ID,
		TopicID:   r.TopicID,
		Body:      r.Body,
		CreatedAt: time.UnixMilli(r.CreatedAt),
	}
	if r.ParentID != nil {
		m.ParentID = *r.ParentID
	}
	if r.Sender != nil {
		m.Sender = &store.Sender{
			Identity: r.Sender.Identity,
			Name:     r.Sender.Name,
			Model:    r.Sender.Model,
			Role:     r.Sender.Role,
		}
	}
	if r.Git != nil {
		m.Git = &store.VersionContext{
			CommitOID: r.Git.OID,
			Head:      r.Git.Head,
			Dirty:     r.Git.Dirty,
			Prefix:    r.Git.Prefix,
		}
	}
	return m
}

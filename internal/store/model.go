package store

import "time"

// Topic is a named container that groups related messages.
// Topics are created once, never mutated, and destroyed only by a full
// index rebuild from the log — never through a public operation.
type Topic struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Sender identifies who or what produced a message. Every field beyond
// Identity is optional context for display.
type Sender struct {
	Identity string
	Name     string
	Model    string
	Role     string
}

// VersionContext captures source-control state at post time. A message
// without git context carries a nil *VersionContext, which the log
// records as JSON null.
type VersionContext struct {
	CommitOID string
	Head      string // branch name, or "" when detached
	Dirty     bool
	Prefix    string // subdirectory prefix the message was posted from
}

// Message is a body of text within a topic, optionally replying to
// another message in the same topic. ReplyCount is derived at read
// time from a correlated count over children; it is never stored.
type Message struct {
	ID         string
	TopicID    string
	ParentID   string // empty when this is a root message
	Body       string
	CreatedAt  time.Time
	ReplyCount int
	Sender     *Sender
	Git        *VersionContext
}

// Blob is a content-addressed binary object. ID is always
// "<algorithm>:<hex digest>" of the content's cryptographic hash.
type Blob struct {
	ID        string
	Size      int64
	MIMEType  string
	CreatedAt time.Time
}

// Attachment relates a message to a blob, with an optional display name.
type Attachment struct {
	MessageID string
	BlobID    string
	Name      string
}

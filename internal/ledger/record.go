package ledger

import "encoding/json"

// TopicRecord and MessageRecord are the two line shapes spec.md §4.3
// defines for messages.jsonl. Field order is not significant on
// either side; unknown fields on read are ignored because the types
// only declare the fields they understand.
type TopicRecord struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
}

type senderRecord struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Model    string `json:"model,omitempty"`
	Role     string `json:"role,omitempty"`
}

type gitRecord struct {
	OID    string `json:"oid"`
	Head   string `json:"head,omitempty"`
	Dirty  bool   `json:"dirty"`
	Prefix string `json:"prefix,omitempty"`
}

type MessageRecord struct {
	Type      string        `json:"type"`
	ID        string        `json:"id"`
	TopicID   string        `json:"topic_id"`
	ParentID  *string       `json:"parent_id"`
	Body      string        `json:"body"`
	CreatedAt int64         `json:"created_at"`
	Sender    *senderRecord `json:"sender"`
	Git       *gitRecord    `json:"git"`
}

// NewSenderRecord builds the sender portion of a message record.
func NewSenderRecord(identity, name, model, role string) *senderRecord {
	return &senderRecord{Identity: identity, Name: name, Model: model, Role: role}
}

// NewGitRecord builds the git portion of a message record.
func NewGitRecord(oid, head string, dirty bool, prefix string) *gitRecord {
	return &gitRecord{OID: oid, Head: head, Dirty: dirty, Prefix: prefix}
}

func marshalRecord(v any) ([]byte, error) {
	line, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// EncodeTopic renders a topic record line, ready for Append.
func EncodeTopic(r TopicRecord) ([]byte, error) {
	r.Type = "topic"
	return marshalRecord(r)
}

// EncodeMessage renders a message record line, ready for Append.
func EncodeMessage(r MessageRecord) ([]byte, error) {
	r.Type = "message"
	return marshalRecord(r)
}

// rawRecord holds only a line's "type" field. Nothing decodes into it
// at present; the replay engine sniffs the type with its own probe
// struct before unmarshalling a line into its concrete shape.
type rawRecord struct {
	Type string `json:"type"`
}

package ledger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLog_EnsureExists_CreatesFilesOnce(t *testing.T) {
	dir := t.TempDir()
	log := Open(filepath.Join(dir, "messages.jsonl"), filepath.Join(dir, "lock"))

	if err := log.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if _, err := log.Append([]byte(`{"type":"topic"}` + "\n")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := log.EnsureExists(); err != nil {
		t.Fatalf("second EnsureExists() error = %v", err)
	}

	data, _, _, err := log.ReadSince(0)
	if err != nil {
		t.Fatalf("ReadSince() error = %v", err)
	}
	if string(data) != `{"type":"topic"}`+"\n" {
		t.Errorf("EnsureExists() truncated existing content: got %q", data)
	}
}

func TestLog_Append_WritesCompleteLine(t *testing.T) {
	dir := t.TempDir()
	log := Open(filepath.Join(dir, "messages.jsonl"), filepath.Join(dir, "lock"))

	if _, err := log.Append([]byte("first\n")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := log.Append([]byte("second\n")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "messages.jsonl"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(raw) != "first\nsecond\n" {
		t.Errorf("log contents = %q, want %q", raw, "first\nsecond\n")
	}
}

func TestLog_ReadSince_ReturnsSuffix(t *testing.T) {
	dir := t.TempDir()
	log := Open(filepath.Join(dir, "messages.jsonl"), filepath.Join(dir, "lock"))

	if _, err := log.Append([]byte("first\n")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	size1, err := fileSize(log)
	if err != nil {
		t.Fatalf("fileSize() error = %v", err)
	}
	if _, err := log.Append([]byte("second\n")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, size, truncated, err := log.ReadSince(size1)
	if err != nil {
		t.Fatalf("ReadSince() error = %v", err)
	}
	if truncated {
		t.Error("ReadSince() reported truncated, want false")
	}
	if string(data) != "second\n" {
		t.Errorf("ReadSince() data = %q, want %q", data, "second\n")
	}
	if size != size1+int64(len("second\n")) {
		t.Errorf("ReadSince() size = %d, want %d", size, size1+int64(len("second\n")))
	}
}

func TestLog_ReadSince_DetectsTruncation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.jsonl")
	log := Open(path, path+".lock")

	if _, err := log.Append([]byte("first\nsecond\n")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("simulating truncation: %v", err)
	}

	_, _, truncated, err := log.ReadSince(1000)
	if err != nil {
		t.Fatalf("ReadSince() error = %v", err)
	}
	if !truncated {
		t.Error("ReadSince() truncated = false, want true when size < offset")
	}
}

func TestLog_ReadSince_EqualOffsetIsNoOp(t *testing.T) {
	dir := t.TempDir()
	log := Open(filepath.Join(dir, "messages.jsonl"), filepath.Join(dir, "lock"))

	if _, err := log.Append([]byte("first\n")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	size, err := fileSize(log)
	if err != nil {
		t.Fatalf("fileSize() error = %v", err)
	}

	data, gotSize, truncated, err := log.ReadSince(size)
	if err != nil {
		t.Fatalf("ReadSince() error = %v", err)
	}
	if truncated {
		t.Error("ReadSince() truncated = true, want false")
	}
	if len(data) != 0 {
		t.Errorf("ReadSince() data = %q, want empty", data)
	}
	if gotSize != size {
		t.Errorf("ReadSince() size = %d, want %d", gotSize, size)
	}
}

func fileSize(l *Log) (int64, error) {
	_, size, _, err := l.ReadSince(0)
	return size, err
}

func TestEncodeTopic_EndsWithNewline(t *testing.T) {
	line, err := EncodeTopic(TopicRecord{ID: "t1", Name: "general", Description: "", CreatedAt: 1000})
	if err != nil {
		t.Fatalf("EncodeTopic() error = %v", err)
	}
	if !bytes.HasSuffix(line, []byte("\n")) {
		t.Errorf("EncodeTopic() = %q, want trailing newline", line)
	}
	if !bytes.Contains(line, []byte(`"type":"topic"`)) {
		t.Errorf("EncodeTopic() = %q, missing type field", line)
	}
}

func TestEncodeMessage_NullParentWhenEmpty(t *testing.T) {
	line, err := EncodeMessage(MessageRecord{ID: "m1", TopicID: "t1", Body: "hi", CreatedAt: 1000})
	if err != nil {
		t.Fatalf("EncodeMessage() error = %v", err)
	}
	if !bytes.Contains(line, []byte(`"parent_id":null`)) {
		t.Errorf("EncodeMessage() = %q, want explicit null parent_id", line)
	}
}

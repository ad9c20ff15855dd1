package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"jwz/internal/config"
	"jwz/internal/repository"
	"jwz/internal/store"
)

func newTestApp(t *testing.T) *JWZApp {
	t.Helper()
	ctx := context.Background()
	storeDir := filepath.Join(t.TempDir(), ".jwz")
	if err := repository.Initialize(afero.NewOsFs(), storeDir); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	cfg := config.Default(t.TempDir())
	a, err := NewJWZApp(ctx, cfg, storeDir, "test")
	if err != nil {
		t.Fatalf("NewJWZApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewJWZApp_OpensStoreAndLogs(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if _, err := a.CreateTopic(ctx, "general", "general discussion"); err != nil {
		t.Fatalf("CreateTopic() error = %v", err)
	}

	logData, err := os.ReadFile(filepath.Join(a.cfg.LogDir, "jwz.log"))
	if err != nil {
		t.Fatalf("reading jwz.log: %v", err)
	}
	if !strings.Contains(string(logData), "creating topic") {
		t.Errorf("jwz.log = %q, want a \"creating topic\" record", logData)
	}
}

func TestJWZApp_PostShowAndSearch(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if _, err := a.CreateTopic(ctx, "general", ""); err != nil {
		t.Fatalf("CreateTopic() error = %v", err)
	}

	sender := &store.Sender{Identity: "anon-1", Name: "mauve-otter"}
	id, err := a.Post(ctx, "general", "", "hello world", sender, nil)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	got, err := a.Show(ctx, id)
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if got.Body != "hello world" {
		t.Errorf("Body = %q, want %q", got.Body, "hello world")
	}

	replyID, err := a.Post(ctx, "general", id, "a reply", sender, nil)
	if err != nil {
		t.Fatalf("Post() reply error = %v", err)
	}

	replies, err := a.Replies(ctx, id)
	if err != nil {
		t.Fatalf("Replies() error = %v", err)
	}
	if len(replies) != 1 || replies[0].ID != replyID {
		t.Errorf("Replies() = %v, want single reply %q", replies, replyID)
	}

	thread, err := a.Thread(ctx, id)
	if err != nil {
		t.Fatalf("Thread() error = %v", err)
	}
	if len(thread) != 2 {
		t.Errorf("Thread() len = %d, want 2", len(thread))
	}

	results, err := a.Search(ctx, "hello", "", a.DefaultSearchLimit())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Errorf("Search() = %v, want single match %q", results, id)
	}
}

func TestJWZApp_BlobPutGetAttach(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if _, err := a.CreateTopic(ctx, "general", ""); err != nil {
		t.Fatalf("CreateTopic() error = %v", err)
	}
	msgID, err := a.Post(ctx, "general", "", "see attached", nil, nil)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	blobID, err := a.PutBlob(ctx, []byte("file contents"), "text/plain")
	if err != nil {
		t.Fatalf("PutBlob() error = %v", err)
	}

	if err := a.AttachBlob(ctx, msgID, blobID, "notes.txt"); err != nil {
		t.Fatalf("AttachBlob() error = %v", err)
	}

	data, err := a.GetBlob(ctx, blobID)
	if err != nil {
		t.Fatalf("GetBlob() error = %v", err)
	}
	if string(data) != "file contents" {
		t.Errorf("GetBlob() = %q, want %q", data, "file contents")
	}

	info, err := a.FetchBlob(ctx, blobID)
	if err != nil {
		t.Fatalf("FetchBlob() error = %v", err)
	}
	if info.MIMEType != "text/plain" {
		t.Errorf("MIMEType = %q, want text/plain", info.MIMEType)
	}
}

package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"jwz/internal/database"
	"jwz/internal/store"
	"jwz/internal/testutil"
)

func testRetry() database.RetryPolicy {
	return database.NewRetryPolicy(5, time.Millisecond, time.Millisecond)
}

func TestInitialize_CreatesLayoutAndRejectsDuplicate(t *testing.T) {
	fsys := afero.NewOsFs()
	dir := filepath.Join(t.TempDir(), ".jwz")

	if err := Initialize(fsys, dir); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	for _, name := range []string{logFileName, lockFileName, ".gitignore"} {
		if exists, err := afero.Exists(fsys, filepath.Join(dir, name)); err != nil || !exists {
			t.Errorf("expected %s to exist, exists=%v err=%v", name, exists, err)
		}
	}
	if exists, _ := afero.Exists(fsys, filepath.Join(dir, indexFileName)); exists {
		t.Error("index file must not be created eagerly by Initialize")
	}

	if err := Initialize(fsys, dir); !errors.Is(err, store.ErrStoreAlreadyExists) {
		t.Errorf("second Initialize() error = %v, want ErrStoreAlreadyExists", err)
	}
}

func TestOpen_ReplaysAndPersists(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewOsFs()
	dir := filepath.Join(t.TempDir(), ".jwz")

	if err := Initialize(fsys, dir); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	clock := testutil.FixedClock()
	ids := &sequentialIDs{}

	s, err := Open(ctx, dir, testRetry(), clock, ids)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.Repository.CreateTopic(ctx, "general", ""); err != nil {
		t.Fatalf("CreateTopic() error = %v", err)
	}
	msgID, err := s.Repository.CreateMessage(ctx, "general", "", "hello", nil, nil)
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Simulate a crash-consistent reopen by deleting the index file (and
	// any WAL/SHM siblings) and reopening: the replay engine must
	// rebuild the index from the log alone.
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = fsys.Remove(filepath.Join(dir, indexFileName+suffix))
	}

	reopened, err := Open(ctx, dir, testRetry(), clock, ids)
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Repository.FetchMessage(ctx, msgID)
	if err != nil {
		t.Fatalf("FetchMessage() error = %v", err)
	}
	if got.Body != "hello" {
		t.Errorf("Body = %q, want hello", got.Body)
	}
}

func TestDiscover_WalksUpAndFailsAtRoot(t *testing.T) {
	fsys := afero.NewOsFs()
	root := t.TempDir()
	storeDir := filepath.Join(root, ".jwz")
	if err := Initialize(fsys, storeDir); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	nested := filepath.Join(root, "a", "b", "c")
	if err := fsys.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	found, err := Discover(fsys, nested)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if found != storeDir {
		t.Errorf("Discover() = %q, want %q", found, storeDir)
	}

	if _, err := Discover(fsys, t.TempDir()); !errors.Is(err, store.ErrStoreNotFound) {
		t.Errorf("Discover(no store) error = %v, want ErrStoreNotFound", err)
	}
}

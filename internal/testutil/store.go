package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"jwz/internal/database"
	"jwz/internal/repository"
)

// NewTestIndex opens an on-disk SQLite index under t.TempDir() with
// schema applied and a short, fast retry policy. The index is closed
// automatically when the test completes.
func NewTestIndex(t *testing.T) *database.Index {
	t.Helper()

	path := filepath.Join(t.TempDir(), "messages.db")
	idx, err := database.Open(path, database.NewRetryPolicy(5, time.Millisecond, time.Millisecond))
	if err != nil {
		t.Fatalf("opening test index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

// NewTestStore initializes and opens a full Store rooted in
// t.TempDir(), using a StubClock and a SequentialIDGenerator for
// deterministic end-to-end scenario tests. It returns the clock
// alongside the store so a scenario test can Advance it between
// writes to fix message ordering. The store is closed automatically
// when the test completes.
func NewTestStore(t *testing.T) (*repository.Store, *StubClock) {
	t.Helper()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), ".jwz")
	if err := repository.Initialize(afero.NewOsFs(), dir); err != nil {
		t.Fatalf("initializing test store: %v", err)
	}

	clock := FixedClock()
	s, err := repository.Open(ctx, dir, database.NewRetryPolicy(5, time.Millisecond, time.Millisecond), clock, NewSequentialIDGenerator())
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// SequentialIDGenerator produces monotonically increasing, Crockford
// base32-alphabet identifiers so they satisfy the same shape checks as
// production ulid.Generator output, without any randomness.
type SequentialIDGenerator struct {
	n int
}

func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{}
}

func (g *SequentialIDGenerator) New() string {
	g.n++
	return fmt.Sprintf("TEST%022d", g.n)
}

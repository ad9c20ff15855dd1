package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"jwz/internal/database"
	"jwz/internal/ledger"
	"jwz/internal/replay"
	"jwz/internal/store"
)

// StoreDirNames are the child-directory names Discover recognizes as a
// store root, in preference order (spec.md §4.8/§6).
var StoreDirNames = []string{".jwz", ".zawinski"}

const (
	indexFileName    = "messages.db"
	logFileName      = "messages.jsonl"
	lockFileName     = "lock"
	gitignoreContent = "messages.db*\nlock\n"
)

// Store owns every resource a running process holds against one store
// directory: the index connection pool, the log handle, and the
// advisory lock file held for the store's whole lifetime.
type Store struct {
	dir        string
	idx        *database.Index
	log        *ledger.Log
	lockFile   *os.File
	Repository *Repository
}

// Initialize creates a new, empty store directory at dir: the
// directory itself, an empty log file and its sibling lock file, and
// a .gitignore listing the engine/lock artifacts. It does not create
// the index; that happens on first Open. Directory and ignore-file
// creation go through fsys so tests can use an in-memory filesystem;
// the log file itself is created directly (ledger.Log needs a real
// file descriptor for advisory locking).
func Initialize(fsys afero.Fs, dir string) error {
	if exists, err := afero.DirExists(fsys, dir); err != nil {
		return fmt.Errorf("checking store directory: %w", err)
	} else if exists {
		return store.ErrStoreAlreadyExists
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	log := ledger.Open(filepath.Join(dir, logFileName), filepath.Join(dir, lockFileName))
	if err := log.EnsureExists(); err != nil {
		return err
	}

	if err := afero.WriteFile(fsys, filepath.Join(dir, ".gitignore"), []byte(gitignoreContent), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}

// Open opens an already-initialized store directory: it opens the
// index (creating and migrating its schema if the file is missing),
// replays any log suffix the index hasn't observed yet, and acquires
// the store's lock file handle, held until Close.
func Open(ctx context.Context, dir string, retry database.RetryPolicy, clock store.Clock, ids store.IDGenerator) (*Store, error) {
	idx, err := database.Open(filepath.Join(dir, indexFileName), retry)
	if err != nil {
		return nil, err
	}

	log := ledger.Open(filepath.Join(dir, logFileName), filepath.Join(dir, lockFileName))

	if err := replay.Apply(ctx, idx, log); err != nil {
		idx.Close()
		return nil, fmt.Errorf("replaying log into index: %w", err)
	}

	lockFile, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("opening store lock file: %w", err)
	}

	return &Store{
		dir:        dir,
		idx:        idx,
		log:        log,
		lockFile:   lockFile,
		Repository: New(idx, log, clock, ids),
	}, nil
}

// Close releases the index connection pool and the store lock handle.
func (s *Store) Close() error {
	var firstErr error
	if err := s.idx.Close(); err != nil {
		firstErr = err
	}
	if err := s.lockFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Discover walks up from startDir looking for a child directory named
// one of StoreDirNames, and returns the full path to that store root.
// It fails with StoreNotFound once it reaches the filesystem root
// without finding one.
func Discover(fsys afero.Fs, startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving starting directory: %w", err)
	}

	for {
		for _, name := range StoreDirNames {
			candidate := filepath.Join(dir, name)
			if exists, err := afero.DirExists(fsys, candidate); err != nil {
				return "", fmt.Errorf("checking %s: %w", candidate, err)
			} else if exists {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir || isFilesystemRoot(dir) {
			return "", store.ErrStoreNotFound
		}
		dir = parent
	}
}

func isFilesystemRoot(dir string) bool {
	return dir == string(filepath.Separator) || strings.TrimSuffix(dir, filepath.VolumeName(dir)) == string(filepath.Separator)
}

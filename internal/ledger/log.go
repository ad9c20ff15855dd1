package ledger

import (
	"fmt"
	"io"
	"os"
)

// Log is the append-only messages.jsonl file plus the sibling lock
// file the write protocol in spec.md §4.3 coordinates through. lockPath
// is the store's single "lock" file — the same file the store lifecycle
// opens and holds for the process's whole session (spec.md §4.8); this
// type only ever takes and releases advisory locks on it, one call at
// a time, and never holds it open itself.
type Log struct {
	path     string
	lockPath string
}

// Open returns a handle to the log file at path, coordinating through
// the advisory lock file at lockPath. It does not touch the
// filesystem; see EnsureExists.
func Open(path, lockPath string) *Log {
	return &Log{path: path, lockPath: lockPath}
}

// EnsureExists creates the log file and its lock file if either is
// missing, without truncating an existing log. Called once by store
// initialization. The lock file is created mode 0600 per spec.md §4.8.
func (l *Log) EnsureExists() error {
	modes := map[string]os.FileMode{l.path: 0o644, l.lockPath: 0o600}
	for _, p := range []string{l.path, l.lockPath} {
		f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, modes[p])
		if err != nil {
			return fmt.Errorf("creating %s: %w", p, err)
		}
		f.Close()
	}
	return nil
}

// Append writes one already-encoded record line under the exclusive
// lock: open read-write, seek to end, write the complete line in one
// call, fsync, close, release the lock. record must already end in a
// newline (see EncodeTopic/EncodeMessage). It returns the log's total
// byte length after the write, which the caller persists as the new
// replay offset in the same index transaction (spec.md §8 P2: the
// offset is tight after every successful write).
func (l *Log) Append(record []byte) (newSize int64, err error) {
	lock, err := acquireLock(l.lockPath, true)
	if err != nil {
		return 0, fmt.Errorf("locking log: %w", err)
	}
	defer lock.release()

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seeking log: %w", err)
	}
	if _, err := f.Write(record); err != nil {
		return 0, fmt.Errorf("writing log record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("fsyncing log: %w", err)
	}
	return offset + int64(len(record)), nil
}

// ReadSince reads the log suffix starting at offset under a shared
// lock, so a concurrent writer cannot append a partial record during
// the read. If the current size is smaller than offset the log has
// been truncated or rotated by an external actor; truncated is then
// true, data is nil and size is the current length, and the caller
// reads again from offset zero to rebuild.
func (l *Log) ReadSince(offset int64) (data []byte, size int64, truncated bool, err error) {
	lock, err := acquireLock(l.lockPath, false)
	if err != nil {
		return nil, 0, false, fmt.Errorf("locking log: %w", err)
	}
	defer lock.release()

	f, err := os.OpenFile(l.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, 0, false, fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, false, fmt.Errorf("statting log: %w", err)
	}
	size = info.Size()

	if size < offset {
		return nil, size, true, nil
	}
	if size == offset {
		return nil, size, false, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, size, false, fmt.Errorf("seeking log: %w", err)
	}
	data, err = io.ReadAll(f)
	if err != nil {
		return nil, size, false, fmt.Errorf("reading log: %w", err)
	}
	return data, size, false, nil
}

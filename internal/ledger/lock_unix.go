//go:build unix

// Package ledger implements the append-only JSONL log: the durable
// source of truth spec.md §2 rebuilds the relational index from. This
// file provides the advisory file lock the log writer and the replay
// engine coordinate through, grounded on the teacher's own platform
// split pattern (internal/fs/stat_unix.go, internal/staging/stat_unix.go)
// and on gazette-core's locked_file_unix.go, which uses the identical
// syscall.Flock shared/exclusive shape for an append-only file.
package ledger

import (
	"os"
	"syscall"
)

type fileLock struct {
	file *os.File
}

func acquireLock(path string, exclusive bool) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	// Blocking, unlike gazette-core's LOCK_NB: a writer or replay should
	// wait out a concurrent holder rather than fail the call outright.
	how := syscall.LOCK_SH
	if exclusive {
		how = syscall.LOCK_EX
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, err
	}
	return &fileLock{file: f}, nil
}

func (l *fileLock) release() error {
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

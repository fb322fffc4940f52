package codeql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrLockTimeout indicates the build lock acquisition timed out.
var ErrLockTimeout = errors.New("build lock acquisition timed out")

// BuildLock serializes database builds across processes using flock(2).
// The lock is released automatically if the holding process exits or
// crashes mid-build.
type BuildLock struct {
	path string
	file *os.File
}

// NewBuildLock creates a lock for the database at dbPath. The lock file
// lives next to the database directory so a half-built database is never
// visible to a reader holding the lock.
func NewBuildLock(dbPath string) *BuildLock {
	return &BuildLock{path: dbPath + ".lock"}
}

// Acquire takes the exclusive lock, blocking until it is available, the
// timeout expires, or the context is canceled.
func (l *BuildLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if err := l.open(); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	pollInterval := 10 * time.Millisecond
	maxPollInterval := 500 * time.Millisecond

	for {
		if time.Now().After(deadline) {
			l.closeFile()
			return ErrLockTimeout
		}

		err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			l.closeFile()
			return fmt.Errorf("flock failed: %w", err)
		}

		select {
		case <-ctx.Done():
			l.closeFile()
			return ctx.Err()
		case <-time.After(pollInterval):
			pollInterval = min(pollInterval*2, maxPollInterval)
		}
	}
}

// Release drops the lock. Safe to call on an unlocked BuildLock.
func (l *BuildLock) Release() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

func (l *BuildLock) open() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	l.file = file
	return nil
}

func (l *BuildLock) closeFile() {
	_ = l.file.Close()
	l.file = nil
}

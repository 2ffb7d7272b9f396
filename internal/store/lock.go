package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	mderrors "github.com/paperlens/mathdex/internal/errors"
)

// ErrLockHeld reports that another process holds the writer lock.
var ErrLockHeld = errors.New("writer lock held by another process")

// WriterLock serializes store writers across processes using gofrs/flock.
// Readers skip it entirely; WAL mode keeps them consistent while a writer
// holds the lock.
type WriterLock struct {
	fl   *flock.Flock
	held bool
}

// NewWriterLock creates the lock for a data directory. The lock file
// lives at <dataDir>/mathdex.lock.
func NewWriterLock(dataDir string) *WriterLock {
	return &WriterLock{fl: flock.New(filepath.Join(dataDir, "mathdex.lock"))}
}

func (l *WriterLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	return nil
}

// Lock blocks until the exclusive lock is acquired, creating the lock
// file and its directory as needed.
func (l *WriterLock) Lock() error {
	if err := l.ensureDir(); err != nil {
		return err
	}
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("acquire writer lock: %w", err)
	}
	l.held = true
	return nil
}

// TryLock attempts the lock without blocking. False means another
// process holds it.
func (l *WriterLock) TryLock() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}
	got, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire writer lock: %w", err)
	}
	l.held = got
	return got, nil
}

// Acquire takes the lock, retrying briefly with jittered backoff, so a
// writer that is just finishing does not fail the command. Returns an
// error wrapping ErrLockHeld once retries are exhausted.
func (l *WriterLock) Acquire(ctx context.Context) error {
	return mderrors.Retry(ctx, mderrors.LockBackoff(), func() error {
		ok, err := l.TryLock()
		if err != nil {
			return err
		}
		if !ok {
			return ErrLockHeld
		}
		return nil
	})
}

// Unlock releases the lock. Safe to call repeatedly or when unlocked.
func (l *WriterLock) Unlock() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release writer lock: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *WriterLock) Path() string {
	return l.fl.Path()
}

// IsLocked reports whether this process holds the lock.
func (l *WriterLock) IsLocked() bool {
	return l.held
}

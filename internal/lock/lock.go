// Package lock serializes mutating pipeline runs on a host. Two concurrent
// reconciliation passes can corrupt the recorded listener state, so every
// mutating command takes this advisory lock first. Read-only commands never
// do.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/moor-sh/moor/internal/domain"
)

// RunLock is an exclusive advisory file lock.
type RunLock struct {
	fl *flock.Flock
}

// New prepares a lock at path; nothing is held until Acquire.
func New(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &RunLock{fl: flock.New(path)}, nil
}

// Acquire takes the lock or fails fast. A held lock means another run is in
// flight; waiting would only queue up conflicting mutations.
func (l *RunLock) Acquire() error {
	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock at %s: %w", l.fl.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", domain.ErrLockHeld, l.fl.Path())
	}
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *RunLock) Release() error {
	return l.fl.Unlock()
}

package lock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moor-sh/moor/internal/domain"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "run.lock")

	l, err := New(path)
	require.NoError(t, err)
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())

	// Once released the lock is free for the next run.
	again, err := New(path)
	require.NoError(t, err)
	require.NoError(t, again.Acquire())
	require.NoError(t, again.Release())
}

func TestAcquire_FailsFastWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	holder, err := New(path)
	require.NoError(t, err)
	require.NoError(t, holder.Acquire())
	defer holder.Release()

	contender, err := New(path)
	require.NoError(t, err)
	err = contender.Acquire()
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Contains(t, err.Error(), path)
}

func TestRelease_WithoutAcquire(t *testing.T) {
	l, err := New(filepath.Join(t.TempDir(), "run.lock"))
	require.NoError(t, err)
	assert.NoError(t, l.Release())
}

// Package state persists listener records: which service process is
// running where. The store replaces bare PID files so the supervisor can be
// tested against an in-memory backend.
package state

import (
	"errors"

	"github.com/moor-sh/moor/internal/domain"
)

// ErrNotFound is returned when no record exists for a listener.
var ErrNotFound = errors.New("no state record for listener")

// Store holds one record per listener.
type Store interface {
	Get(listener domain.ListenerName) (*domain.ServiceProcess, error)
	Put(proc *domain.ServiceProcess) error
	Delete(listener domain.ListenerName) error
	Close() error
}

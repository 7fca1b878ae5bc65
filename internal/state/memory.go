package state

import (
	"sync"

	"github.com/moor-sh/moor/internal/domain"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[domain.ListenerName]domain.ServiceProcess
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.ListenerName]domain.ServiceProcess)}
}

func (s *MemoryStore) Get(listener domain.ListenerName) (*domain.ServiceProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[listener]
	if !ok {
		return nil, ErrNotFound
	}
	copy := rec
	return &copy, nil
}

func (s *MemoryStore) Put(proc *domain.ServiceProcess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[proc.Listener] = *proc
	return nil
}

func (s *MemoryStore) Delete(listener domain.ListenerName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, listener)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

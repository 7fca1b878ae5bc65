package state

import (
	"encoding/json"
	"fmt"

	"github.com/starskey-io/starskey"

	"github.com/moor-sh/moor/internal/domain"
)

// StarskeyStore persists listener records in an embedded KV store under the
// state directory.
type StarskeyStore struct {
	db *starskey.Starskey
}

// NewStarskeyStore opens (or creates) the store at dir.
func NewStarskeyStore(dir string) (*StarskeyStore, error) {
	db, err := starskey.Open(&starskey.Config{
		Permission:     0755,
		Directory:      dir,
		FlushThreshold: 1024 * 1024,
		MaxLevel:       3,
		SizeFactor:     10,
		BloomFilter:    true,
		SuRF:           false,
		Logging:        false,
		Compression:    false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store at %s: %w", dir, err)
	}
	return &StarskeyStore{db: db}, nil
}

func key(listener domain.ListenerName) []byte {
	return []byte("listener/" + string(listener))
}

func (s *StarskeyStore) Get(listener domain.ListenerName) (*domain.ServiceProcess, error) {
	value, err := s.db.Get(key(listener))
	if err != nil {
		return nil, fmt.Errorf("failed to read state for %s: %w", listener, err)
	}
	if value == nil {
		return nil, ErrNotFound
	}
	var proc domain.ServiceProcess
	if err := json.Unmarshal(value, &proc); err != nil {
		return nil, fmt.Errorf("corrupt state record for %s: %w", listener, err)
	}
	return &proc, nil
}

func (s *StarskeyStore) Put(proc *domain.ServiceProcess) error {
	data, err := json.Marshal(proc)
	if err != nil {
		return fmt.Errorf("failed to encode state record: %w", err)
	}
	if err := s.db.Put(key(proc.Listener), data); err != nil {
		return fmt.Errorf("failed to write state for %s: %w", proc.Listener, err)
	}
	return nil
}

func (s *StarskeyStore) Delete(listener domain.ListenerName) error {
	if err := s.db.Delete(key(listener)); err != nil {
		return fmt.Errorf("failed to clear state for %s: %w", listener, err)
	}
	return nil
}

func (s *StarskeyStore) Close() error {
	return s.db.Close()
}

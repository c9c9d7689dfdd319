package record

import (
	"context"
	"sync"

	"storefront-cart/internal/domain"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore keeps records for the lifetime of the process.
func NewMemoryStore() domain.RecordStore {
	return &memoryStore{records: make(map[string][]byte)}
}

func (s *memoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *memoryStore) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.records[key] = v
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

package local

import (
	"slices"
	"sync"

	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
)

var _ ports.DurableStorage = (*MemoryStore)(nil)

// MemoryStore — хранилище в памяти с той же семантикой квоты, что и FileStore.
type MemoryStore struct {
	quota int64
	items map[string]string
	total int64
	mu    sync.Mutex
}

func NewMemoryStore(quota int64) *MemoryStore {
	return &MemoryStore{quota: quota, items: make(map[string]string)}
}

func (s *MemoryStore) GetItem(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *MemoryStore) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.total - int64(len(s.items[key])) + int64(len(value))
	if s.quota > 0 && next > s.quota {
		return apperr.Wrap(apperr.ErrStorageFull, apperr.CodeStorageFull, "set item %q", key)
	}
	s.items[key] = value
	s.total = next
	return nil
}

func (s *MemoryStore) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.items[key]; ok {
		s.total -= int64(len(v))
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

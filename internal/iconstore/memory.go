package iconstore

import (
	"context"
	"sync"

	"github.com/aizatto/faviconurl/internal/icons"
)

// Memory keeps named icon stores in process memory. Nothing survives a
// restart.
type Memory struct {
	mu     sync.Mutex
	stores map[string]*memoryStore
}

func NewMemory() *Memory {
	return &Memory{stores: map[string]*memoryStore{}}
}

func (m *Memory) Stores(_ context.Context, name string) ([]icons.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stores[name]
	if !ok {
		s = &memoryStore{entries: map[string]icons.CachedIcon{}}
		m.stores[name] = s
	}
	return []icons.Store{s}, nil
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]icons.CachedIcon
}

func (s *memoryStore) Get(_ context.Context, key string) (icons.CachedIcon, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	icon, ok := s.entries[key]
	if ok {
		icon.Blob = append([]byte(nil), icon.Blob...)
	}
	return icon, ok, nil
}

func (s *memoryStore) Add(_ context.Context, icon icons.CachedIcon, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return nil
	}
	icon.Blob = append([]byte(nil), icon.Blob...)
	s.entries[key] = icon
	return nil
}

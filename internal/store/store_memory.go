package store

import (
	"context"
	"sync"

	"github.com/gregjones/httpcache"
)

type memoryStorage struct {
	stores map[string]*memoryStore
	closed bool
	lock   sync.Mutex
}

type memoryStore struct {
	tag   string
	cache *httpcache.MemoryCache
	keys  map[string]struct{}
	lock  sync.RWMutex
}

// NewMemoryStorage creates a Storage that keeps every generation in memory. Its contents are lost when
// the process exits.
func NewMemoryStorage() Storage {
	return &memoryStorage{stores: make(map[string]*memoryStore)}
}

func (m *memoryStorage) Kind() string { return "memory" }

func (m *memoryStorage) Open(ctx context.Context, tag string) (Store, error) {
	if err := checkTag(tag); err != nil {
		return nil, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return nil, errStorageClosed
	}
	s, ok := m.stores[tag]
	if !ok {
		s = &memoryStore{tag: tag, cache: httpcache.NewMemoryCache(), keys: make(map[string]struct{})}
		m.stores[tag] = s
	}
	return s, nil
}

func (m *memoryStorage) Tags(ctx context.Context) ([]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return nil, errStorageClosed
	}
	tags := make([]string, 0, len(m.stores))
	for tag := range m.stores {
		tags = append(tags, tag)
	}
	return tags, nil
}

func (m *memoryStorage) Delete(ctx context.Context, tag string) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return false, errStorageClosed
	}
	s, ok := m.stores[tag]
	if !ok {
		return false, nil
	}
	delete(m.stores, tag)
	s.clear()
	return true, nil
}

func (m *memoryStorage) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	m.stores = nil
	return nil
}

func (s *memoryStore) Tag() string { return s.tag }

func (s *memoryStore) Get(ctx context.Context, key string) (Snapshot, bool, error) {
	data, ok := s.cache.Get(key)
	if !ok {
		return Snapshot{}, false, nil
	}
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snapshot, true, nil
}

func (s *memoryStore) Put(ctx context.Context, key string, snapshot Snapshot) error {
	data, err := snapshot.Encode()
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cache.Set(key, data)
	s.keys[key] = struct{}{}
	return nil
}

func (s *memoryStore) Len(ctx context.Context) (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.keys), nil
}

// A deleted store may still be held by a worker that is finishing a request; clearing it makes any
// later reads miss instead of returning superseded content.
func (s *memoryStore) clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for key := range s.keys {
		s.cache.Delete(key)
	}
	s.keys = make(map[string]struct{})
}

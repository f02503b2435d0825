package kvs

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps values in a map. Data is lost when the process exits;
// it backs tests and the --ephemeral CLI mode.
type MemoryStore struct {
	prefix string
	items  map[string][]byte
	mu     sync.RWMutex
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		prefix: prefix,
		items:  make(map[string][]byte),
	}
}

func (m *MemoryStore) prefixedKey(key string) string {
	return m.prefix + key
}

// Get retrieves a copy of the value stored under key.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	value, ok := m.items[m.prefixedKey(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.items[m.prefixedKey(key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes a key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	delete(m.items, m.prefixedKey(key))
	return nil
}

// List returns keys under keyPrefix with the store prefix removed.
func (m *MemoryStore) List(ctx context.Context, keyPrefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	fullPrefix := m.prefixedKey(keyPrefix)
	var keys []string
	for key := range m.items {
		if strings.HasPrefix(key, fullPrefix) {
			keys = append(keys, strings.TrimPrefix(key, m.prefix))
		}
	}
	return keys, nil
}

// Close drops all items.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	m.items = nil
	return nil
}

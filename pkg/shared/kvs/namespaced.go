package kvs

import (
	"context"
	"strings"
)

// NamespacedStore prefixes every key so several logical stores can share one
// backend. The factory uses it to split credentials ("auth:") from the
// environment override ("env:"), which must survive a credential Clear.
type NamespacedStore struct {
	store  Store
	prefix string
}

// NewNamespacedStore wraps store. An empty prefix returns store unchanged.
func NewNamespacedStore(store Store, prefix string) Store {
	if prefix == "" {
		return store
	}
	return &NamespacedStore{store: store, prefix: prefix}
}

// Get retrieves a value by key.
func (n *NamespacedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return n.store.Get(ctx, n.prefix+key)
}

// Set stores a value.
func (n *NamespacedStore) Set(ctx context.Context, key string, value []byte) error {
	return n.store.Set(ctx, n.prefix+key, value)
}

// Delete removes a key.
func (n *NamespacedStore) Delete(ctx context.Context, key string) error {
	return n.store.Delete(ctx, n.prefix+key)
}

// List returns keys under keyPrefix with the namespace removed.
func (n *NamespacedStore) List(ctx context.Context, keyPrefix string) ([]string, error) {
	keys, err := n.store.List(ctx, n.prefix+keyPrefix)
	if err != nil {
		return nil, err
	}
	for i, key := range keys {
		keys[i] = strings.TrimPrefix(key, n.prefix)
	}
	return keys, nil
}

// Close closes the underlying store. When several namespaces share one
// backend, close the backend instead.
func (n *NamespacedStore) Close() error {
	return n.store.Close()
}

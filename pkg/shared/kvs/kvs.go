// Package kvs is the key-value persistence layer under the credential store
// and the environment override. Values are opaque byte strings.
package kvs

import (
	"context"
	"errors"
	"time"
)

// Store is a key-value store. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set creates or replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys starting with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources. Operations after Close return ErrClosed.
	Close() error
}

var (
	// ErrNotFound is returned when a key is not found.
	ErrNotFound = errors.New("kvs: key not found")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("kvs: store is closed")
)

// Config selects and configures a backend.
type Config struct {
	// Type is "leveldb" (default), "memory" or "redis".
	Type string `yaml:"type" json:"type"`

	// Namespace isolates this console's keys:
	// a key prefix for memory and redis, a directory suffix for leveldb.
	Namespace string `yaml:"namespace" json:"namespace"`

	LevelDB LevelDBConfig `yaml:"leveldb" json:"leveldb"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`
}

// LevelDBConfig configures the LevelDB store.
type LevelDBConfig struct {
	// Path is the database directory. Empty means a directory under the
	// user's config dir.
	Path string `yaml:"path" json:"path"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`

	// DialTimeout bounds the connectivity check in NewRedisStore (default 5s).
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
}

// New creates a store for cfg.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "leveldb", "":
		return NewLevelDBStore(cfg.Namespace, cfg.LevelDB)
	case "memory":
		return NewMemoryStore(cfg.Namespace), nil
	case "redis":
		return NewRedisStore(cfg.Namespace, cfg.Redis)
	default:
		return nil, errors.New("kvs: unsupported store type: " + cfg.Type)
	}
}

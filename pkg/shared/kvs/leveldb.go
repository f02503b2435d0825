package kvs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// defaultDirName is the directory created under os.UserConfigDir when no
// LevelDB path is configured.
const defaultDirName = "funpik-adminconsole"

// LevelDBStore persists values on the local filesystem. It is the console's
// equivalent of browser local storage: it survives restarts and is private
// to the user running the CLI.
type LevelDBStore struct {
	db        *leveldb.DB
	writeOpts *opt.WriteOptions
	closed    bool
	mu        sync.RWMutex
}

// DefaultLevelDBPath resolves the directory used when cfg.Path is empty.
func DefaultLevelDBPath(namespace string) string {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		baseDir = os.TempDir()
	}

	dirName := defaultDirName
	if namespace != "" {
		sanitized := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
				return r
			}
			return '-'
		}, namespace)
		dirName = dirName + "-" + sanitized
	}
	return filepath.Join(baseDir, dirName)
}

// NewLevelDBStore opens (or creates) the database. A corrupted database is
// recovered in place.
func NewLevelDBStore(namespace string, cfg LevelDBConfig) (*LevelDBStore, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		dbPath = DefaultLevelDBPath(namespace)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("kvs/leveldb: failed to create directory: %w", err)
	}

	db, err := leveldb.OpenFile(dbPath, &opt.Options{Strict: opt.DefaultStrict})
	if err != nil {
		if lerrors.IsCorrupted(err) {
			db, err = leveldb.RecoverFile(dbPath, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("kvs/leveldb: failed to open database at %s: %w", dbPath, err)
		}
	}

	// the directory isolates the namespace, so keys are stored unprefixed
	return &LevelDBStore{
		db:        db,
		writeOpts: &opt.WriteOptions{Sync: cfg.SyncWrites},
	}, nil
}

func (l *LevelDBStore) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	return nil
}

// Get retrieves a value by key.
func (l *LevelDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	value, err := l.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kvs/leveldb: get failed: %w", err)
	}
	return value, nil
}

// Set stores a value.
func (l *LevelDBStore) Set(ctx context.Context, key string, value []byte) error {
	if err := l.checkOpen(); err != nil {
		return err
	}

	if err := l.db.Put([]byte(key), value, l.writeOpts); err != nil {
		return fmt.Errorf("kvs/leveldb: set failed: %w", err)
	}
	return nil
}

// Delete removes a key.
func (l *LevelDBStore) Delete(ctx context.Context, key string) error {
	if err := l.checkOpen(); err != nil {
		return err
	}

	if err := l.db.Delete([]byte(key), l.writeOpts); err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("kvs/leveldb: delete failed: %w", err)
	}
	return nil
}

// List returns all keys matching a prefix.
func (l *LevelDBStore) List(ctx context.Context, keyPrefix string) ([]string, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("kvs/leveldb: iteration failed: %w", err)
	}
	return keys, nil
}

// Close closes the database.
func (l *LevelDBStore) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	l.mu.Unlock()

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("kvs/leveldb: close failed: %w", err)
	}
	return nil
}

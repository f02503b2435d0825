package kvs

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories builds each backend against the same contract.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore("test:")
		},
		"leveldb": func(t *testing.T) Store {
			store, err := NewLevelDBStore("test", LevelDBConfig{Path: filepath.Join(t.TempDir(), "db")})
			require.NoError(t, err)
			return store
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			store, err := NewRedisStore("test", RedisConfig{Addr: mr.Addr()})
			require.NoError(t, err)
			return store
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer func() { _ = store.Close() }()

			t.Run("missing key", func(t *testing.T) {
				_, err := store.Get(ctx, "absent")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("set then get", func(t *testing.T) {
				require.NoError(t, store.Set(ctx, "access_token", []byte("T1")))
				value, err := store.Get(ctx, "access_token")
				require.NoError(t, err)
				assert.Equal(t, "T1", string(value))
			})

			t.Run("overwrite", func(t *testing.T) {
				require.NoError(t, store.Set(ctx, "access_token", []byte("T2")))
				value, err := store.Get(ctx, "access_token")
				require.NoError(t, err)
				assert.Equal(t, "T2", string(value))
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				require.NoError(t, store.Delete(ctx, "access_token"))
				require.NoError(t, store.Delete(ctx, "access_token"))
				_, err := store.Get(ctx, "access_token")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("list by prefix", func(t *testing.T) {
				require.NoError(t, store.Set(ctx, "auth:user", []byte("{}")))
				require.NoError(t, store.Set(ctx, "auth:authenticated", []byte("true")))
				require.NoError(t, store.Set(ctx, "env:api_environment", []byte("production")))

				keys, err := store.List(ctx, "auth:")
				require.NoError(t, err)
				sort.Strings(keys)
				assert.Equal(t, []string{"auth:authenticated", "auth:user"}, keys)
			})

			t.Run("closed store", func(t *testing.T) {
				require.NoError(t, store.Close())
				assert.ErrorIs(t, store.Close(), ErrClosed)
				_, err := store.Get(ctx, "auth:user")
				assert.ErrorIs(t, err, ErrClosed)
				assert.ErrorIs(t, store.Set(ctx, "k", []byte("v")), ErrClosed)
			})
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")
	defer func() { _ = store.Close() }()

	value := []byte("original")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'X'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	got[0] = 'Y'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))
}

func TestLevelDBStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db")

	store, err := NewLevelDBStore("", LevelDBConfig{Path: path, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "access_token", []byte("T1")))
	require.NoError(t, store.Close())

	reopened, err := NewLevelDBStore("", LevelDBConfig{Path: path})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	value, err := reopened.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.Equal(t, "T1", string(value))
}

func TestDefaultLevelDBPath_SanitizesNamespace(t *testing.T) {
	path := DefaultLevelDBPath("ops team/1")
	assert.Equal(t, defaultDirName+"-ops-team-1", filepath.Base(path))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	_, err := NewRedisStore("test", RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisStore_UsesNamespacePrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("console", RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Set(ctx, "access_token", []byte("T1")))

	raw, err := mr.Get("console:access_token")
	require.NoError(t, err)
	assert.Equal(t, "T1", raw)
}

func TestNew_SelectsBackend(t *testing.T) {
	store, err := New(Config{Type: "memory", Namespace: "x:"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	require.NoError(t, store.Close())

	store, err = New(Config{LevelDB: LevelDBConfig{Path: filepath.Join(t.TempDir(), "db")}})
	require.NoError(t, err)
	assert.IsType(t, &LevelDBStore{}, store)
	require.NoError(t, store.Close())

	_, err = New(Config{Type: "etcd"})
	assert.Error(t, err)
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mmcdole/kinomark/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh instance of every implementation.
func backends(t *testing.T) map[string]domain.KVStore {
	t.Helper()
	dir := t.TempDir()

	bolt, err := NewBoltStore(filepath.Join(dir, "kv.db"))
	require.NoError(t, err)

	memory, err := NewBoltStore("")
	require.NoError(t, err)

	file, err := NewFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)

	sqlite, err := NewSQLiteStore(filepath.Join(dir, "kv.sqlite"))
	require.NoError(t, err)

	sqliteMem, err := NewSQLiteInMemory()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return map[string]domain.KVStore{
		"bolt":          bolt,
		"memory":        memory,
		"file":          file,
		"sqlite":        sqlite,
		"sqlite-memory": sqliteMem,
		"redis":         NewRedisStoreWithClient(client, "test:"),
	}
}

func TestKVStore_Contract(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer kv.Close()
			ctx := context.Background()

			// Absent key
			v, ok, err := kv.Get(ctx, "savedMovies")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, v)

			// Write then read
			require.NoError(t, kv.Set(ctx, "savedMovies", []byte(`[{"id":1}]`)))
			v, ok, err = kv.Get(ctx, "savedMovies")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[{"id":1}]`, string(v))

			// Overwrite
			require.NoError(t, kv.Set(ctx, "savedMovies", []byte(`[]`)))
			v, ok, err = kv.Get(ctx, "savedMovies")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[]`, string(v))

			// Keys are independent
			_, ok, err = kv.Get(ctx, "other")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestKVStore_ClosedRejectsCalls(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, kv.Close())
			assert.NoError(t, kv.Close(), "double close")

			_, _, err := kv.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, kv.Set(ctx, "k", []byte("v")), ErrClosed)
		})
	}
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kino.db")
	ctx := context.Background()

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "savedMovies", []byte(`[{"id":7}]`)))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, "savedMovies")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":7}]`, string(v))
}

func TestBoltStore_ReturnedBytesAreCopies(t *testing.T) {
	s, err := NewBoltStore("")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in))
	in[0] = 'X'

	out, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	out[0] = 'Y'
	again, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestBoltStore_StaleReadDoesNotReplaceNewerWrite(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	// A Set that lands between the disk read and the cache fill.
	require.NoError(t, s.Set(ctx, "k", []byte("new")))
	assert.Equal(t, "new", string(s.promote("k", []byte("old"))))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", string(v))
}

func TestBoltStore_ReadFromDiskIsCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	s.mu.RLock()
	cached := string(s.cache["k"])
	s.mu.RUnlock()
	assert.Equal(t, "v1", cached)
}

func TestFileStore_EscapesKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "../escape", []byte("x")))

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	v, ok, err := s.Get(ctx, "../escape")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", string(v))
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(client, "kinomark:")
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), "savedMovies", []byte("[]")))

	got, err := mr.Get("kinomark:savedMovies")
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
	assert.Zero(t, mr.TTL("kinomark:savedMovies"), "values never expire")
}

func TestNewRedisStore_FailsWhenUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"default is bolt", Options{Path: filepath.Join(dir, "a.db")}, nil},
		{"bolt", Options{Backend: BackendBolt, Path: filepath.Join(dir, "b.db")}, nil},
		{"memory", Options{Backend: BackendMemory}, nil},
		{"file", Options{Backend: BackendFile, Path: filepath.Join(dir, "files")}, nil},
		{"sqlite uppercase", Options{Backend: "SQLITE", Path: filepath.Join(dir, "c.sqlite")}, nil},
		{"unknown", Options{Backend: "etcd"}, ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, err := Open(ctx, tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, kv.Close())
		})
	}
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	kv, err := Open(context.Background(), Options{
		Backend: BackendRedis,
		Redis:   RedisOptions{Addr: mr.Addr(), Prefix: "x:"},
	})
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(context.Background(), "k", []byte("v")))
	assert.True(t, mr.Exists("x:k"))
}

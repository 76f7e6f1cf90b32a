package bookmarks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/kinomark/internal/domain"
	"github.com/mmcdole/kinomark/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// memKV is an in-memory domain.KVStore with failure and latency hooks.
type memKV struct {
	mu       sync.Mutex
	data     map[string][]byte
	getErr   error
	setErr   error
	setDelay time.Duration
	gate     chan struct{} // Get blocks until closed when non-nil
	sets     [][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (k *memKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k.mu.Lock()
	gate := k.gate
	k.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.getErr != nil {
		return nil, false, k.getErr
	}
	v, ok := k.data[key]
	return v, ok, nil
}

func (k *memKV) Set(_ context.Context, key string, value []byte) error {
	k.mu.Lock()
	delay := k.setDelay
	k.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.setErr != nil {
		return k.setErr
	}
	k.data[key] = append([]byte(nil), value...)
	k.sets = append(k.sets, k.data[key])
	return nil
}

func (k *memKV) Close() error { return nil }

func (k *memKV) put(key, value string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = []byte(value)
}

func (k *memKV) setFailure(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.setErr = err
}

func (k *memKV) stored(t *testing.T) []domain.SavedItem {
	t.Helper()
	k.mu.Lock()
	raw, ok := k.data[StorageKey]
	k.mu.Unlock()
	require.True(t, ok, "nothing persisted")

	var items []domain.SavedItem
	require.NoError(t, json.Unmarshal(raw, &items))
	return items
}

func (k *memKV) setCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.sets)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T, kv domain.KVStore, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	s := Open(context.Background(), kv, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func waitReady(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitReady(ctx))
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func movie(t *testing.T, id int, title string) domain.Movie {
	t.Helper()
	m, err := domain.NewMovie(id, map[string]any{
		"title":        title,
		"overview":     "Overview of " + title,
		"vote_average": 7.5,
		"poster_path":  "/poster.jpg",
	})
	require.NoError(t, err)
	return m
}

func ids(items []domain.SavedItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStore_EmptyStorageLoadsEmpty(t *testing.T) {
	s := openStore(t, newMemKV())
	waitReady(t, s)

	assert.Equal(t, StateReady, s.State())
	assert.False(t, s.Loading())
	assert.Empty(t, s.Saved())
	assert.NoError(t, s.LastError())
}

func TestStore_AddThenQuery(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 535_000_000, time.UTC)
	s := openStore(t, newMemKV(), WithClock(fixedClock(now)))
	waitReady(t, s)

	assert.True(t, s.Add(movie(t, 42, "X")))

	assert.True(t, s.IsSaved(42))
	saved := s.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, 42, saved[0].ID)
	assert.Equal(t, "X", saved[0].Title())
	assert.Equal(t, "2025-03-14T15:09:26.535Z", saved[0].SavedAt)

	got, ok := s.Get(42)
	require.True(t, ok)
	assert.Equal(t, saved[0], got)
}

func TestStore_AddAppendsInOrder(t *testing.T) {
	s := openStore(t, newMemKV())
	waitReady(t, s)

	s.Add(movie(t, 3, "C"))
	s.Add(movie(t, 1, "A"))
	s.Add(movie(t, 2, "B"))

	assert.Equal(t, []int{3, 1, 2}, ids(s.Saved()))
	assert.Equal(t, 3, s.Len())
}

func TestStore_AddDuplicateIsNoOp(t *testing.T) {
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := first
	s := openStore(t, newMemKV(), WithClock(func() time.Time { return clock }))
	waitReady(t, s)

	require.True(t, s.Add(movie(t, 5, "Five")))
	clock = first.Add(time.Hour)
	assert.False(t, s.Add(movie(t, 5, "Five again")))

	saved := s.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, "Five", saved[0].Title())
	assert.Equal(t, "2025-01-01T00:00:00.000Z", saved[0].SavedAt)
}

func TestStore_RemoveAbsentID(t *testing.T) {
	kv := newMemKV()
	s := openStore(t, kv)
	waitReady(t, s)

	s.Add(movie(t, 1, "One"))
	flush(t, s)
	writes := kv.setCount()

	assert.False(t, s.Remove(99))

	assert.True(t, s.IsSaved(1))
	assert.False(t, s.IsSaved(99))
	assert.Equal(t, []int{1}, ids(s.Saved()))
	flush(t, s)
	assert.Equal(t, writes, kv.setCount(), "no-op remove should not write")
}

func TestStore_Remove(t *testing.T) {
	s := openStore(t, newMemKV())
	waitReady(t, s)

	s.Add(movie(t, 1, "One"))
	s.Add(movie(t, 2, "Two"))
	s.Add(movie(t, 3, "Three"))

	assert.True(t, s.Remove(2))
	assert.Equal(t, []int{1, 3}, ids(s.Saved()))
	assert.False(t, s.IsSaved(2))
}

func TestStore_ToggleTwiceRestoresMembership(t *testing.T) {
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := openStore(t, newMemKV(), WithClock(func() time.Time { return clock }))
	waitReady(t, s)

	m := movie(t, 10, "Ten")

	// Absent -> present -> absent
	assert.True(t, s.Toggle(m))
	assert.True(t, s.IsSaved(10))
	assert.False(t, s.Toggle(m))
	assert.False(t, s.IsSaved(10))

	// Present -> absent -> present, with a new savedAt
	s.Add(m)
	before, _ := s.Get(10)
	clock = clock.Add(time.Minute)
	s.Toggle(m)
	s.Toggle(m)
	after, ok := s.Get(10)
	require.True(t, ok)
	assert.NotEqual(t, before.SavedAt, after.SavedAt)
}

func TestStore_UniquenessUnderRandomSequences(t *testing.T) {
	s := openStore(t, newMemKV())
	waitReady(t, s)

	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		id := r.IntN(20)
		switch r.IntN(3) {
		case 0:
			s.Add(movie(t, id, "m"))
		case 1:
			s.Remove(id)
		default:
			s.Toggle(movie(t, id, "m"))
		}

		seen := make(map[int]bool)
		for _, it := range s.Saved() {
			require.False(t, seen[it.ID], "duplicate id %d after step %d", it.ID, i)
			seen[it.ID] = true
		}
		assert.Equal(t, len(seen), s.Len())
	}
}

func TestStore_PersistedCollectionRoundTrips(t *testing.T) {
	kv := newMemKV()
	s := openStore(t, kv)
	waitReady(t, s)

	s.Add(movie(t, 1, "One"))
	s.Add(movie(t, 2, "Two"))
	flush(t, s)

	assert.Equal(t, s.Saved(), kv.stored(t))
}

func TestStore_PersistenceSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kino.db")
	ctx := context.Background()

	kv, err := store.NewBoltStore(path)
	require.NoError(t, err)

	s := Open(ctx, kv, WithLogger(discardLogger()))
	waitReady(t, s)
	s.Add(movie(t, 7, "Se7en"))
	want := s.Saved()
	require.NoError(t, s.Close(ctx))
	require.NoError(t, kv.Close())

	kv, err = store.NewBoltStore(path)
	require.NoError(t, err)
	defer kv.Close()

	restarted := openStore(t, kv)
	waitReady(t, restarted)

	assert.True(t, restarted.IsSaved(7))
	assert.Equal(t, want, restarted.Saved())
}

func TestStore_LoadFallsBackOnCorruptContent(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", "{not json"},
		{"object instead of array", `{"id":1}`},
		{"entry without id", `[{"title":"no id"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMemKV()
			kv.put(StorageKey, tt.value)

			s := openStore(t, kv)
			waitReady(t, s)

			assert.Equal(t, StateReady, s.State())
			assert.Empty(t, s.Saved())
			assert.ErrorIs(t, s.LastError(), domain.ErrDurableRead)
		})
	}
}

func TestStore_LoadFallsBackOnReadError(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("disk on fire")

	s := openStore(t, kv)
	waitReady(t, s)

	assert.Empty(t, s.Saved())
	assert.ErrorIs(t, s.LastError(), domain.ErrDurableRead)

	// The store is still usable and persists once writes work.
	s.Add(movie(t, 1, "One"))
	flush(t, s)
	assert.Equal(t, []int{1}, ids(kv.stored(t)))
	assert.NoError(t, s.LastError())
}

func TestStore_LoadDropsDuplicateEntries(t *testing.T) {
	kv := newMemKV()
	kv.put(StorageKey, `[{"id":1,"title":"a","savedAt":"2024-01-01T00:00:00.000Z"},{"id":1,"title":"b"},{"id":2}]`)

	s := openStore(t, kv)
	waitReady(t, s)

	saved := s.Saved()
	assert.Equal(t, []int{1, 2}, ids(saved))
	assert.Equal(t, "a", saved[0].Title())
	assert.Equal(t, "2024-01-01T00:00:00.000Z", saved[0].SavedAt)
}

func TestStore_NullStoredValueIsEmpty(t *testing.T) {
	kv := newMemKV()
	kv.put(StorageKey, "null")

	s := openStore(t, kv)
	waitReady(t, s)

	assert.Empty(t, s.Saved())
	assert.NoError(t, s.LastError())
}

func TestStore_MutationsDuringLoadingSurviveLoad(t *testing.T) {
	kv := newMemKV()
	kv.put(StorageKey, `[{"id":1,"title":"Stored"},{"id":2,"title":"Stored too"}]`)
	kv.gate = make(chan struct{})

	s := openStore(t, kv)

	// Still loading: reads see only in-memory state.
	assert.True(t, s.Loading())
	assert.False(t, s.IsSaved(1))

	s.Add(movie(t, 3, "Early"))
	s.Add(movie(t, 1, "Early duplicate of stored"))
	s.Remove(2)
	assert.True(t, s.IsSaved(3))
	assert.Equal(t, 0, kv.setCount(), "nothing written before the load finishes")

	close(kv.gate)
	waitReady(t, s)

	saved := s.Saved()
	assert.Equal(t, []int{1, 3}, ids(saved))
	assert.Equal(t, "Stored", saved[0].Title())

	flush(t, s)
	assert.Equal(t, []int{1, 3}, ids(kv.stored(t)))
}

func TestStore_WritesLandInMutationOrder(t *testing.T) {
	kv := newMemKV()
	kv.setDelay = 2 * time.Millisecond

	s := openStore(t, kv)
	waitReady(t, s)

	for i := 0; i < 50; i++ {
		s.Add(movie(t, i, "m"))
		if i%3 == 0 {
			s.Remove(i - 1)
		}
	}
	flush(t, s)

	assert.Equal(t, ids(s.Saved()), ids(kv.stored(t)))
	assert.Less(t, kv.setCount(), 50, "pending snapshots should coalesce")

	kv.mu.Lock()
	last := kv.sets[len(kv.sets)-1]
	kv.mu.Unlock()
	var final []domain.SavedItem
	require.NoError(t, json.Unmarshal(last, &final))
	assert.Equal(t, s.Saved(), final)
}

func TestStore_FailedWriteKeepsMemoryAndSelfHeals(t *testing.T) {
	kv := newMemKV()
	s := openStore(t, kv)
	waitReady(t, s)

	kv.setFailure(errors.New("quota exceeded"))
	s.Add(movie(t, 1, "One"))
	flush(t, s)

	assert.True(t, s.IsSaved(1), "in-memory change is not rolled back")
	assert.ErrorIs(t, s.LastError(), domain.ErrDurableWrite)

	kv.setFailure(nil)
	s.Add(movie(t, 2, "Two"))
	flush(t, s)

	assert.NoError(t, s.LastError())
	assert.Equal(t, []int{1, 2}, ids(kv.stored(t)))
}

func TestStore_FlushObservesWriteOutcome(t *testing.T) {
	kv := newMemKV()
	kv.setFailure(errors.New("quota exceeded"))
	s := openStore(t, kv)
	waitReady(t, s)

	for i := 1; i <= 50; i++ {
		s.Add(movie(t, i, "Movie"))
		flush(t, s)
		require.ErrorIs(t, s.LastError(), domain.ErrDurableWrite, "write %d", i)
	}
}

func TestStore_EmptyCollectionPersistsAsEmptyArray(t *testing.T) {
	kv := newMemKV()
	s := openStore(t, kv)
	waitReady(t, s)

	s.Add(movie(t, 1, "One"))
	s.Remove(1)
	flush(t, s)

	kv.mu.Lock()
	raw := string(kv.data[StorageKey])
	kv.mu.Unlock()
	assert.Equal(t, "[]", raw)
}

func TestStore_CustomKey(t *testing.T) {
	kv := newMemKV()
	s := openStore(t, kv, WithKey("watchlist"))
	waitReady(t, s)

	s.Add(movie(t, 1, "One"))
	flush(t, s)

	kv.mu.Lock()
	_, ok := kv.data["watchlist"]
	kv.mu.Unlock()
	assert.True(t, ok)
}

func TestStore_ObserversSeeLoadAndMutations(t *testing.T) {
	kv := newMemKV()
	kv.put(StorageKey, `[{"id":1}]`)
	kv.gate = make(chan struct{})

	s := openStore(t, kv)

	var mu sync.Mutex
	var got [][]int
	unsubscribe := s.Subscribe(domain.ObserverFunc(func(items []domain.SavedItem) {
		mu.Lock()
		got = append(got, ids(items))
		mu.Unlock()
	}))

	close(kv.gate)
	waitReady(t, s)
	s.Add(movie(t, 2, "Two"))
	s.Remove(1)
	s.Remove(1) // no-op, no notification

	unsubscribe()
	s.Add(movie(t, 3, "Three"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]int{{1}, {1, 2}, {2}}, got)
}

func TestStore_LoadedCollectionDeliveredBeforeLaterMutations(t *testing.T) {
	for range 50 {
		kv := newMemKV()
		kv.put(StorageKey, `[{"id":1}]`)
		kv.gate = make(chan struct{})
		s := openStore(t, kv)

		var mu sync.Mutex
		var got [][]int
		unsubscribe := s.Subscribe(domain.ObserverFunc(func(items []domain.SavedItem) {
			mu.Lock()
			got = append(got, ids(items))
			mu.Unlock()
		}))

		close(kv.gate)
		waitReady(t, s)
		s.Add(movie(t, 2, "Two"))
		unsubscribe()

		mu.Lock()
		require.Equal(t, [][]int{{1}, {1, 2}}, got)
		mu.Unlock()
	}
}

func TestStore_SubscribeAfterReadyGetsCurrentCollection(t *testing.T) {
	s := openStore(t, newMemKV())
	waitReady(t, s)
	s.Add(movie(t, 4, "Four"))

	var got []int
	unsubscribe := s.Subscribe(domain.ObserverFunc(func(items []domain.SavedItem) {
		got = ids(items)
	}))
	defer unsubscribe()

	assert.Equal(t, []int{4}, got)
}

func TestStore_SnapshotsAreIndependent(t *testing.T) {
	s := openStore(t, newMemKV())
	waitReady(t, s)
	s.Add(movie(t, 1, "One"))

	snapshot := s.Saved()
	snapshot[0].ID = 999
	s.Add(movie(t, 2, "Two"))

	assert.Equal(t, []int{1, 2}, ids(s.Saved()))
}

func TestStore_MutationsAfterCloseStayInMemory(t *testing.T) {
	kv := newMemKV()
	s := Open(context.Background(), kv, WithLogger(discardLogger()))
	waitReady(t, s)

	s.Add(movie(t, 1, "One"))
	require.NoError(t, s.Close(context.Background()))
	writes := kv.setCount()

	s.Add(movie(t, 2, "Two"))

	assert.True(t, s.IsSaved(2))
	assert.Equal(t, writes, kv.setCount())
	assert.NoError(t, s.Flush(context.Background()))
	assert.NoError(t, s.Close(context.Background()), "double close")
}

func TestStore_ConcurrentCallers(t *testing.T) {
	kv := newMemKV()
	s := openStore(t, kv)
	waitReady(t, s)

	movies := make([]domain.Movie, 37)
	for i := range movies {
		movies[i] = movie(t, i, "m")
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := (w*100 + i) % len(movies)
				s.Toggle(movies[id])
				_ = s.IsSaved(id)
				_ = s.Saved()
			}
		}(w)
	}
	wg.Wait()
	flush(t, s)

	assert.Equal(t, ids(s.Saved()), ids(kv.stored(t)))
}

func TestStore_CloseStopsWriterGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	kv := newMemKV()
	s := Open(context.Background(), kv, WithLogger(discardLogger()))
	waitReady(t, s)
	s.Add(movie(t, 1, "One"))

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, []int{1}, ids(kv.stored(t)))
}

func TestStore_CloseWhileLoadingIsBounded(t *testing.T) {
	kv := newMemKV()
	kv.gate = make(chan struct{})
	defer close(kv.gate)

	s := Open(context.Background(), kv, WithLogger(discardLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

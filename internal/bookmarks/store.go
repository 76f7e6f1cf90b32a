// Package bookmarks keeps the saved-movies collection in memory and mirrors
// every change to a durable key-value store.
//
// The in-memory collection is authoritative for the life of the process.
// Durability is best effort: a failed write is logged and never rolls back the
// in-memory change, and the next successful write (always the full collection)
// catches the durable copy up. Every mutation re-encodes the whole collection,
// which is fine for bookmark-sized lists but O(n) per change.
package bookmarks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mmcdole/kinomark/internal/domain"
)

// StorageKey is the single key the collection is stored under.
const StorageKey = "savedMovies"

// State of the store
type State int

const (
	StateLoading State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "loading"
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp savedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithKey overrides StorageKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// earlyOp is a mutation made while the initial load was still running.
type earlyOp struct {
	remove bool
	id     int
	item   domain.SavedItem
}

// Store implements domain.Bookmarks.
type Store struct {
	kv     domain.KVStore
	key    string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	items   []domain.SavedItem
	ids     map[int]struct{}
	state   State
	early   []earlyOp
	version uint64
	lastErr error

	ready  chan struct{}
	writer *writer

	obsMu     sync.Mutex
	observers map[int]domain.Observer
	nextObsID int

	deliverMu sync.Mutex
	delivered uint64
}

var _ domain.Bookmarks = (*Store)(nil)

// Open returns a store in the Loading state and starts reading the saved
// collection from kv in the background. The caller keeps ownership of kv.
func Open(ctx context.Context, kv domain.KVStore, opts ...Option) *Store {
	s := &Store{
		kv:        kv,
		key:       StorageKey,
		logger:    slog.Default(),
		now:       time.Now,
		ids:       make(map[int]struct{}),
		ready:     make(chan struct{}),
		observers: make(map[int]domain.Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.writer = newWriter(kv, s.key, s.writeDone)

	go s.writer.run(ctx, s.ready)
	go s.load(ctx)

	return s
}

// load reads the durable collection once and moves the store to Ready.
// Read and parse failures fall back to an empty collection.
func (s *Store) load(ctx context.Context) {
	loaded, err := s.read(ctx)
	if err != nil {
		s.logger.Error("error loading saved movies", "key", s.key, "error", err)
		loaded = nil
	}

	// deliverMu is held across the state change so the loaded collection
	// reaches observers before any mutation made after Ready.
	s.deliverMu.Lock()
	s.mu.Lock()
	early := s.early
	s.early = nil
	s.items, s.ids = replay(loaded, early)
	s.state = StateReady
	s.version++
	if err != nil {
		s.lastErr = err
	}
	version := s.version
	snapshot := slices.Clone(s.items)
	if len(early) > 0 {
		s.writer.enqueue(slices.Clone(s.items), version)
	}
	s.mu.Unlock()

	s.logger.Info("loaded saved movies", "count", len(snapshot), "replayed", len(early))
	s.deliverLocked(version, snapshot)
	s.deliverMu.Unlock()

	close(s.ready)
}

func (s *Store) read(ctx context.Context) ([]domain.SavedItem, error) {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDurableRead, err)
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}

	var items []domain.SavedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDurableRead, err)
	}
	return items, nil
}

// replay dedupes the loaded collection and applies early mutations on top.
func replay(loaded []domain.SavedItem, early []earlyOp) ([]domain.SavedItem, map[int]struct{}) {
	items := make([]domain.SavedItem, 0, len(loaded)+len(early))
	ids := make(map[int]struct{}, len(loaded)+len(early))

	for _, item := range loaded {
		if _, dup := ids[item.ID]; dup {
			continue
		}
		ids[item.ID] = struct{}{}
		items = append(items, item)
	}

	for _, op := range early {
		if op.remove {
			if _, ok := ids[op.id]; ok {
				delete(ids, op.id)
				items = slices.DeleteFunc(items, func(it domain.SavedItem) bool { return it.ID == op.id })
			}
			continue
		}
		if _, ok := ids[op.item.ID]; ok {
			continue
		}
		ids[op.item.ID] = struct{}{}
		items = append(items, op.item)
	}

	return items, ids
}

// Ready is closed once the initial load has finished.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// WaitReady blocks until the store is Ready or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading reports whether the initial read is still in flight.
func (s *Store) Loading() bool { return s.State() == StateLoading }

// Saved returns a copy of the collection in display order.
// Payload maps are shared and must be treated as read-only.
func (s *Store) Saved() []domain.SavedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Len returns the number of saved movies.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// IsSaved reports whether id is in the collection.
func (s *Store) IsSaved(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Get returns the saved entry for id.
func (s *Store) Get(id int) (domain.SavedItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.ids[id]; !ok {
		return domain.SavedItem{}, false
	}
	i := slices.IndexFunc(s.items, func(it domain.SavedItem) bool { return it.ID == id })
	return s.items[i], true
}

// Add stamps m with the current time and appends it. Saving an id that is
// already present is a no-op that returns false and keeps the original savedAt.
func (s *Store) Add(m domain.Movie) bool {
	s.mu.Lock()
	if !s.addLocked(m) {
		s.mu.Unlock()
		s.logger.Debug("movie already saved", "id", m.ID)
		return false
	}
	version, snapshot := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("saved movie", "id", m.ID, "title", m.Title())
	s.publish(version, snapshot)
	return true
}

// Remove deletes the entry for id. Absent ids are a no-op that returns false.
func (s *Store) Remove(id int) bool {
	s.mu.Lock()
	if !s.removeLocked(id) {
		s.mu.Unlock()
		return false
	}
	version, snapshot := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("removed saved movie", "id", id)
	s.publish(version, snapshot)
	return true
}

// Toggle removes m if saved, otherwise adds it. Returns the new saved state.
func (s *Store) Toggle(m domain.Movie) bool {
	s.mu.Lock()
	var saved bool
	if _, ok := s.ids[m.ID]; ok {
		s.removeLocked(m.ID)
	} else {
		s.addLocked(m)
		saved = true
	}
	version, snapshot := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("toggled saved movie", "id", m.ID, "saved", saved)
	s.publish(version, snapshot)
	return saved
}

func (s *Store) addLocked(m domain.Movie) bool {
	if _, ok := s.ids[m.ID]; ok {
		return false
	}
	item := domain.NewSavedItem(m, s.now())
	s.items = append(s.items, item)
	s.ids[m.ID] = struct{}{}
	if s.state == StateLoading {
		s.early = append(s.early, earlyOp{item: item})
	}
	return true
}

// removeLocked records removes made while Loading even when the id is not in
// memory yet, so they still apply to the collection once it is read.
func (s *Store) removeLocked(id int) bool {
	if s.state == StateLoading {
		s.early = append(s.early, earlyOp{remove: true, id: id})
	}
	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	s.items = slices.DeleteFunc(s.items, func(it domain.SavedItem) bool { return it.ID == id })
	return true
}

// commitLocked bumps the version and hands a snapshot to the writer.
func (s *Store) commitLocked() (uint64, []domain.SavedItem) {
	s.version++
	if !s.writer.enqueue(slices.Clone(s.items), s.version) {
		s.logger.Warn("store closed, change not persisted", "count", len(s.items))
	}
	return s.version, slices.Clone(s.items)
}

// writeDone is called by the writer after every attempt.
func (s *Store) writeDone(seq uint64, count int, err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("error saving movies to storage", "key", s.key, "count", count, "error", err)
		return
	}
	s.logger.Debug("persisted saved movies", "count", count, "seq", seq)
}

// LastError returns the most recent durable read/write failure, or nil once a
// later write succeeded.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Subscribe registers o. Once Ready, o immediately receives the current
// collection. Observers must not call back into the store synchronously.
func (s *Store) Subscribe(o domain.Observer) func() {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = o
	s.obsMu.Unlock()

	if !s.Loading() {
		s.deliverMu.Lock()
		o.OnBookmarksChanged(s.Saved())
		s.deliverMu.Unlock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

// publish delivers snapshot unless a newer one has already gone out.
func (s *Store) publish(version uint64, snapshot []domain.SavedItem) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.deliverLocked(version, snapshot)
}

// deliverLocked is publish with deliverMu already held.
func (s *Store) deliverLocked(version uint64, snapshot []domain.SavedItem) {
	if version <= s.delivered {
		return
	}
	s.delivered = version

	s.obsMu.Lock()
	observers := make([]domain.Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.obsMu.Unlock()

	for _, o := range observers {
		o.OnBookmarksChanged(snapshot)
	}
}

// Flush blocks until every change made before the call has been written (or
// failed). It waits for the initial load if that is still running.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.WaitReady(ctx); err != nil {
		return err
	}
	return s.writer.flush(ctx)
}

// Close flushes pending writes and stops the writer goroutine. Later
// mutations still apply in memory but are not persisted. It does not close
// the KV store.
func (s *Store) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	stopErr := s.writer.stop(ctx)
	return errors.Join(flushErr, stopErr)
}

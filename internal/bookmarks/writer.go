package bookmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mmcdole/kinomark/internal/domain"
)

// writer owns every durable write for one store. Snapshots handed to it
// coalesce: only the newest pending one is written, and writes never overlap,
// so the value that lands last is always the latest in-memory state.
type writer struct {
	kv     domain.KVStore
	key    string
	report func(seq uint64, count int, err error)

	mu         sync.Mutex
	pending    []domain.SavedItem
	hasPending bool
	pendingSeq uint64
	queuedSeq  uint64 // highest seq ever enqueued
	doneSeq    uint64 // highest seq written or failed
	waiters    []flushWaiter
	stopped    bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

type flushWaiter struct {
	seq uint64
	ch  chan struct{}
}

func newWriter(kv domain.KVStore, key string, report func(uint64, int, error)) *writer {
	return &writer{
		kv:     kv,
		key:    key,
		report: report,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// enqueue replaces any pending snapshot. Returns false once the writer is stopped.
func (w *writer) enqueue(items []domain.SavedItem, seq uint64) bool {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	w.pending = items
	w.hasPending = true
	w.pendingSeq = seq
	if seq > w.queuedSeq {
		w.queuedSeq = seq
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// run writes pending snapshots until stop. Nothing is written before start closes.
func (w *writer) run(ctx context.Context, start <-chan struct{}) {
	defer close(w.done)

	select {
	case <-start:
	case <-w.quit:
		return
	}

	for {
		select {
		case <-w.wake:
		case <-w.quit:
			return
		}

		w.mu.Lock()
		if !w.hasPending {
			w.mu.Unlock()
			continue
		}
		items, seq := w.pending, w.pendingSeq
		w.pending, w.hasPending = nil, false
		w.mu.Unlock()

		err := w.persist(ctx, items)

		// Report before waking flush callers so they observe the outcome.
		w.report(seq, len(items), err)

		w.mu.Lock()
		if seq > w.doneSeq {
			w.doneSeq = seq
		}
		w.releaseWaiters()
		w.mu.Unlock()
	}
}

func (w *writer) persist(ctx context.Context, items []domain.SavedItem) error {
	if items == nil {
		items = []domain.SavedItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", domain.ErrDurableWrite, err)
	}
	// Writes outlive cancellation of the caller that opened the store.
	if err := w.kv.Set(context.WithoutCancel(ctx), w.key, data); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDurableWrite, err)
	}
	return nil
}

// releaseWaiters must be called with mu held.
func (w *writer) releaseWaiters() {
	kept := w.waiters[:0]
	for _, fw := range w.waiters {
		if fw.seq <= w.doneSeq {
			close(fw.ch)
			continue
		}
		kept = append(kept, fw)
	}
	w.waiters = kept
}

// flush waits until everything enqueued before the call has been attempted.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	if w.doneSeq >= w.queuedSeq {
		w.mu.Unlock()
		return nil
	}
	fw := flushWaiter{seq: w.queuedSeq, ch: make(chan struct{})}
	w.waiters = append(w.waiters, fw)
	w.mu.Unlock()

	select {
	case <-fw.ch:
		return nil
	case <-w.done:
		return fmt.Errorf("%w: writer stopped with changes pending", domain.ErrDurableWrite)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop refuses new snapshots and ends the run loop.
func (w *writer) stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.quit)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

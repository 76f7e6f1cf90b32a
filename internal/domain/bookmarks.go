package domain

// Bookmarks is the caller-facing surface of the saved-movies store.
// The CLI and TUI depend on this rather than the concrete store.
type Bookmarks interface {
	// Saved returns a snapshot of the collection in display order.
	Saved() []SavedItem

	// Loading reports whether the initial read is still in flight.
	Loading() bool

	IsSaved(id int) bool

	// Add saves m and reports whether it was inserted (false if already saved).
	Add(m Movie) bool

	// Remove deletes the entry with id and reports whether one existed.
	Remove(id int) bool

	// Toggle flips the saved state of m and returns the new state.
	Toggle(m Movie) bool

	// Subscribe registers o for collection updates until the returned func is called.
	Subscribe(o Observer) (unsubscribe func())
}

// Observer receives a fresh snapshot after the load and after every mutation.
type Observer interface {
	OnBookmarksChanged(items []SavedItem)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(items []SavedItem)

func (f ObserverFunc) OnBookmarksChanged(items []SavedItem) { f(items) }

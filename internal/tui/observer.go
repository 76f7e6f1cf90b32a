package tui

import "github.com/mmcdole/kinomark/internal/domain"

// ChannelObserver adapts domain.Observer to a channel for Bubble Tea.
type ChannelObserver struct {
	ch chan []domain.SavedItem
}

// NewChannelObserver creates a new channel-based observer. ch should have a
// buffer of one; only the newest snapshot matters.
func NewChannelObserver(ch chan []domain.SavedItem) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnBookmarksChanged replaces any undelivered snapshot with items.
// Never blocks the store.
func (o *ChannelObserver) OnBookmarksChanged(items []domain.SavedItem) {
	for {
		select {
		case o.ch <- items:
			return
		default:
		}
		select {
		case <-o.ch: // Drop the stale snapshot
		default:
		}
	}
}

package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/kinomark/internal/domain"
)

// BookmarksChangedMsg carries a fresh collection snapshot from the store
type BookmarksChangedMsg struct {
	Items []domain.SavedItem
}

// waitForChange blocks until the observer forwards the next snapshot
func waitForChange(ch <-chan []domain.SavedItem) tea.Cmd {
	return func() tea.Msg {
		items, ok := <-ch
		if !ok {
			return nil
		}
		return BookmarksChangedMsg{Items: items}
	}
}

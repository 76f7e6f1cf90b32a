package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/kinomark/internal/domain"
	"github.com/mmcdole/kinomark/internal/tui/styles"
	"github.com/sahilm/fuzzy"
)

// ChromeHeight is the number of lines taken by header, filter bar and footer
const ChromeHeight = 5

// row is a visible list entry with the title offsets the filter matched
type row struct {
	item    domain.SavedItem
	matched []int
}

// Model is the Bubble Tea model for the saved-movies browser
type Model struct {
	store       domain.Bookmarks
	updates     chan []domain.SavedItem
	unsubscribe func()
	logger      *slog.Logger

	// Data
	items []domain.SavedItem
	rows  []row

	// UI components
	spinner     spinner.Model
	filterInput textinput.Model

	// UI state
	Loading      bool
	filterActive bool
	filterQuery  string
	cursor       int
	offset       int
	showHelp     bool
	StatusMsg    string

	// Dimensions
	Width  int
	Height int
}

// NewModel creates the browser and subscribes it to store updates.
// Call Close when the program exits.
func NewModel(store domain.Bookmarks, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPrompt
	ti.TextStyle = styles.FilterStyle

	updates := make(chan []domain.SavedItem, 1)
	m := Model{
		store:       store,
		updates:     updates,
		logger:      logger,
		spinner:     sp,
		filterInput: ti,
		Loading:     store.Loading(),
	}
	m.unsubscribe = store.Subscribe(NewChannelObserver(updates))
	return m
}

// Close detaches the model from the store
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init starts the spinner and waits for the first snapshot
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.updates))
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.ensureVisible()
		return m, nil

	case spinner.TickMsg:
		if !m.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case BookmarksChangedMsg:
		m.Loading = false
		m.items = msg.Items
		m.applyFilter()
		m.logger.Debug("browser received snapshot", "count", len(msg.Items))
		return m, waitForChange(m.updates)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Typing into the filter
	if m.filterActive && m.filterInput.Focused() {
		switch {
		case key.Matches(msg, Keys.Escape):
			m.clearFilter()
			return m, nil
		case key.Matches(msg, Keys.Accept):
			m.filterInput.Blur()
			return m, nil
		case msg.Type == tea.KeyBackspace && m.filterInput.Value() == "":
			m.clearFilter()
			return m, nil
		}

		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, Keys.Escape):
		if m.showHelp {
			m.showHelp = false
		} else if m.filterActive {
			m.clearFilter()
		}

	case key.Matches(msg, Keys.Filter):
		if m.Loading {
			return m, nil
		}
		m.filterActive = true
		m.StatusMsg = ""
		return m, m.filterInput.Focus()

	case key.Matches(msg, Keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, Keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, Keys.HalfUp):
		m.moveCursor(-m.maxVisible() / 2)
	case key.Matches(msg, Keys.HalfDown):
		m.moveCursor(m.maxVisible() / 2)
	case key.Matches(msg, Keys.Home):
		m.cursor = 0
		m.offset = 0
	case key.Matches(msg, Keys.End):
		m.moveCursor(len(m.rows))

	case key.Matches(msg, Keys.Remove):
		m.removeSelected()
	}

	return m, nil
}

// removeSelected drops the highlighted movie. The list itself refreshes
// when the store publishes the new snapshot.
func (m *Model) removeSelected() {
	item, ok := m.Selected()
	if !ok {
		return
	}
	if m.store.Remove(item.ID) {
		m.StatusMsg = fmt.Sprintf("Removed %q", item.Title())
		m.logger.Info("removed saved movie", "id", item.ID)
	}
}

// Selected returns the movie under the cursor
func (m Model) Selected() (domain.SavedItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return domain.SavedItem{}, false
	}
	return m.rows[m.cursor].item, true
}

// Visible returns the movies currently listed, after filtering
func (m Model) Visible() []domain.SavedItem {
	out := make([]domain.SavedItem, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.item
	}
	return out
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
	m.ensureVisible()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) maxVisible() int {
	if m.Height <= 0 {
		return len(m.rows)
	}
	n := m.Height - ChromeHeight
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Model) ensureVisible() {
	limit := m.maxVisible()
	if limit <= 0 {
		m.offset = 0
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+limit {
		m.offset = m.cursor - limit + 1
	}
}

func (m *Model) clearFilter() {
	m.filterActive = false
	m.filterQuery = ""
	m.filterInput.SetValue("")
	m.filterInput.Blur()
	m.applyFilter()
}

// applyFilter rebuilds rows from items. An empty query lists everything in
// saved order; otherwise titles are fuzzy matched and ranked.
func (m *Model) applyFilter() {
	selected, hadSelection := m.Selected()
	query := strings.TrimSpace(m.filterInput.Value())
	queryChanged := query != m.filterQuery
	m.filterQuery = query

	if query == "" {
		m.rows = make([]row, len(m.items))
		for i, item := range m.items {
			m.rows[i] = row{item: item}
		}
	} else {
		lowerTitles := make([]string, len(m.items))
		for i, item := range m.items {
			lowerTitles[i] = strings.ToLower(item.Title())
		}

		matches := fuzzy.Find(strings.ToLower(query), lowerTitles)
		m.rows = make([]row, len(matches))
		for i, match := range matches {
			m.rows[i] = row{item: m.items[match.Index], matched: match.MatchedIndexes}
		}
	}

	if queryChanged {
		// Reset cursor to first match
		m.cursor = 0
		m.offset = 0
		return
	}

	// Keep the cursor on the same movie across store updates when possible
	if hadSelection {
		for i, r := range m.rows {
			if r.item.ID == selected.ID {
				m.cursor = i
				m.ensureVisible()
				return
			}
		}
	}
	m.clampCursor()
	m.ensureVisible()
}

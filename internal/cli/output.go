package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mmcdole/kinomark/internal/domain"
	"github.com/mmcdole/kinomark/internal/search"
)

const (
	emptyCollection = "No saved movies yet"
	emptySearch     = "No saved movies found"
)

// writeJSON prints items in their storage form. An empty result is "[]".
func writeJSON(w io.Writer, items []domain.SavedItem) error {
	if items == nil {
		items = []domain.SavedItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode movies: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeTable prints a summary line followed by one row per movie
func writeTable(w io.Writer, items []domain.SavedItem, empty string) {
	if len(items) == 0 {
		fmt.Fprintln(w, empty)
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "YEAR", "RATING", "SAVED")

	for _, item := range items {
		year := ""
		if y := item.Year(); y > 0 {
			year = strconv.Itoa(y)
		}
		saved := item.SavedAt
		if ts := item.SavedTime(); !ts.IsZero() {
			saved = ts.Local().Format("2006-01-02 15:04")
		}
		t.Row(strconv.Itoa(item.ID), item.Title(), year, item.FormattedRating(), saved)
	}

	fmt.Fprintln(w, search.Summary(len(items)))
	fmt.Fprintln(w, t.String())
}

// describe renders a movie as `"Title" (id)` for status lines
func describe(m domain.Movie) string {
	if title := m.Title(); title != "" {
		return fmt.Sprintf("%q (%d)", title, m.ID)
	}
	return fmt.Sprintf("movie %d", m.ID)
}

func describeSaved(item domain.SavedItem, ok bool, id int) string {
	if !ok {
		return fmt.Sprintf("movie %d", id)
	}
	return describe(item.Movie)
}

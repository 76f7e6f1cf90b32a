package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/kinomark/internal/search"
	"github.com/mmcdole/kinomark/internal/tui/styles"
)

const (
	emptyText   = "No saved movies yet"
	noMatchText = "No saved movies found"
	loadingText = "Loading saved movies..."
)

// View renders the browser
func (m Model) View() string {
	if m.Loading {
		return m.spinner.View() + " " + styles.DimStyle.Render(loadingText) + "\n"
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.filterActive {
		b.WriteString(m.renderFilterBar())
		b.WriteString("\n")
	}

	b.WriteString(m.renderList())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	header := search.Summary(len(m.items))
	if m.filterQuery != "" {
		header = search.ResultSummary(len(m.rows), m.filterQuery)
	}
	return styles.HeaderStyle.Render(header)
}

func (m Model) renderFilterBar() string {
	input := m.filterInput.View()
	if m.filterQuery == "" {
		return input
	}
	return input + styles.DimStyle.Render(fmt.Sprintf(" [%d/%d]", len(m.rows), len(m.items)))
}

func (m Model) renderList() string {
	if len(m.rows) == 0 {
		if m.filterQuery != "" {
			return styles.DimStyle.Render(noMatchText)
		}
		return styles.DimStyle.Render(emptyText)
	}

	width := m.Width
	if width <= 0 {
		width = 80
	}

	end := m.offset + m.maxVisible()
	if end > len(m.rows) {
		end = len(m.rows)
	}

	lines := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		lines = append(lines, renderRow(m.rows[i], i == m.cursor, width))
	}
	return strings.Join(lines, "\n")
}

// renderRow lays out "Title (Year)  ★ 8.7  en" with the title highlighted
func renderRow(r row, selected bool, width int) string {
	item := r.item

	var meta []string
	meta = append(meta, "★ "+item.FormattedRating())
	if lang := item.Language(); lang != "" {
		meta = append(meta, strings.ToUpper(lang))
	}
	metaText := "  " + strings.Join(meta, "  ")

	title := item.Title()
	if title == "" {
		title = fmt.Sprintf("#%d", item.ID)
	}
	year := ""
	if y := item.Year(); y > 0 {
		year = fmt.Sprintf(" (%d)", y)
	}

	titleWidth := width - lipgloss.Width(metaText) - lipgloss.Width(year) - 4
	title = styles.Truncate(title, titleWidth)

	text := styles.Highlight(title, r.matched, selected)
	rest := styles.NormalText
	rating := styles.RatingStyle
	margin := lipgloss.NewStyle()
	if selected {
		rest = styles.SelectedText
		rating = rating.Background(styles.SlateLight)
		margin = styles.SelectedMargin
	}

	line := margin.Render(" ") + text + rest.Render(year) + rating.Render(metaText)
	if pad := width - lipgloss.Width(line) - 1; pad > 0 {
		line += margin.Render(strings.Repeat(" ", pad))
	}
	return line + margin.Render(" ")
}

func (m Model) renderFooter() string {
	if m.StatusMsg != "" {
		return styles.AccentStyle.Render(m.StatusMsg)
	}

	parts := make([]string, 0, 5)
	for _, b := range footerBindings() {
		h := b.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, styles.DimStyle.Render("  •  "))
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(styles.HeaderStyle.Render("Keys"))
	b.WriteString("\n")
	for _, binding := range []struct {
		name string
		keys string
	}{
		{"Up / down", Keys.Up.Help().Key + " " + Keys.Down.Help().Key},
		{"Top / bottom", Keys.Home.Help().Key + " " + Keys.End.Help().Key},
		{"Half page", Keys.HalfUp.Help().Key + " " + Keys.HalfDown.Help().Key},
		{"Filter by title", Keys.Filter.Help().Key},
		{"Clear filter", Keys.Escape.Help().Key},
		{"Remove movie", strings.Join(Keys.Remove.Keys(), " ")},
		{"Quit", Keys.Quit.Help().Key},
	} {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			styles.HelpKeyStyle.Render(fmt.Sprintf("%-10s", binding.keys)),
			styles.HelpDescStyle.Render(binding.name)))
	}
	b.WriteString("\n")
	b.WriteString(styles.DimStyle.Render("Press ? or esc to close"))
	return b.String()
}


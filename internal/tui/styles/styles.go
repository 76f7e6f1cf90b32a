package styles

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Accent     = lipgloss.Color("#FF9C01")
	SlateLight = lipgloss.Color("#374151")
	DimGray    = lipgloss.Color("#6B7280")
	LightGray  = lipgloss.Color("#9CA3AF")
	White      = lipgloss.Color("#F9FAFB")
	Red        = lipgloss.Color("#EF4444")
	Yellow     = lipgloss.Color("#FACC15")
)

// Text styles
var (
	TitleStyle     lipgloss.Style
	SubtitleStyle  lipgloss.Style
	DimStyle       lipgloss.Style
	AccentStyle    lipgloss.Style
	ErrorStyle     lipgloss.Style
	RatingStyle    lipgloss.Style
	HeaderStyle    lipgloss.Style
	SpinnerStyle   lipgloss.Style
	FilterStyle    lipgloss.Style
	FilterPrompt   lipgloss.Style
	HelpKeyStyle   lipgloss.Style
	HelpDescStyle  lipgloss.Style
	MatchStyle     lipgloss.Style
	SelectedMatch  lipgloss.Style
	NormalText     lipgloss.Style
	SelectedText   lipgloss.Style
	SelectedMargin lipgloss.Style
)

func init() {
	SetAccent(Accent)
}

// SetAccent rebuilds every accent-derived style. Call before the program starts.
func SetAccent(c lipgloss.Color) {
	Accent = c

	TitleStyle = lipgloss.NewStyle().Foreground(White).Bold(true)
	SubtitleStyle = lipgloss.NewStyle().Foreground(LightGray)
	DimStyle = lipgloss.NewStyle().Foreground(DimGray)
	AccentStyle = lipgloss.NewStyle().Foreground(Accent)
	ErrorStyle = lipgloss.NewStyle().Foreground(Red)
	RatingStyle = lipgloss.NewStyle().Foreground(Yellow)

	HeaderStyle = lipgloss.NewStyle().
		Foreground(Accent).
		Bold(true).
		MarginBottom(1)

	SpinnerStyle = lipgloss.NewStyle().Foreground(Accent)

	FilterStyle = lipgloss.NewStyle().Foreground(Accent)
	FilterPrompt = lipgloss.NewStyle().
		Foreground(Accent).
		Bold(true)

	HelpKeyStyle = lipgloss.NewStyle().Foreground(Accent)
	HelpDescStyle = lipgloss.NewStyle().Foreground(DimGray)

	MatchStyle = lipgloss.NewStyle().
		Foreground(Accent).
		Bold(true)
	SelectedMatch = lipgloss.NewStyle().
		Foreground(Accent).
		Background(SlateLight).
		Bold(true)

	NormalText = lipgloss.NewStyle().Foreground(LightGray)
	SelectedText = lipgloss.NewStyle().
		Foreground(White).
		Background(SlateLight)
	SelectedMargin = lipgloss.NewStyle().Background(SlateLight)
}

// Truncate truncates a string to the given width with ellipsis
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

// Highlight renders text with the runes at byte offsets in matched picked out.
// Consecutive runes sharing a style are rendered together.
func Highlight(text string, matched []int, selected bool) string {
	normal, match := NormalText, MatchStyle
	if selected {
		normal, match = SelectedText, SelectedMatch
	}
	if len(matched) == 0 {
		return normal.Render(text)
	}

	set := make(map[int]bool, len(matched))
	for _, idx := range matched {
		set[idx] = true
	}

	var run []rune
	var result string
	runMatched := false
	flush := func() {
		if len(run) == 0 {
			return
		}
		if runMatched {
			result += match.Render(string(run))
		} else {
			result += normal.Render(string(run))
		}
		run = run[:0]
	}

	for i, r := range text {
		if set[i] != runMatched {
			flush()
			runMatched = set[i]
		}
		run = append(run, r)
	}
	flush()
	return result
}

package search

import (
	"slices"
	"strings"
	"unicode"
)

// titleMatch is one title that satisfied every query token.
type titleMatch struct {
	index   int   // Index in the source slice
	score   int   // Lower is better
	matched []int // Rune positions in the title (for highlighting)
}

// word is a run of letters/digits and where it sits in the original string.
type word struct {
	text       string // Lowercase
	start, end int    // Rune offsets, end exclusive
}

// Scores per match kind (lower = better)
const (
	scoreExact     = 0
	scorePrefix    = 10
	scorePartial   = 20  // Query word runs past the end of a title word
	scoreInWord    = 50  // + offset inside the word
	scoreTypo      = 100 // + 20 per edit
	scoreAnywhere  = 150 // + rune offset in the title
	scoreExtraWord = 5   // Per title word the query did not ask for
)

// matchTitles ranks titles against query. Every query word must match some
// title word (order does not matter, "robot mr" finds "Mr. Robot"), with typo
// tolerance that grows with word length.
func matchTitles(query string, titles []string) []titleMatch {
	queryWords := splitWords(query)
	if len(queryWords) == 0 {
		return nil
	}

	var matches []titleMatch
	for i, title := range titles {
		if m, ok := matchTitle(title, queryWords); ok {
			m.index = i
			matches = append(matches, m)
		}
	}

	slices.SortStableFunc(matches, func(a, b titleMatch) int {
		if a.score != b.score {
			return a.score - b.score
		}
		return len(titles[a.index]) - len(titles[b.index])
	})
	return matches
}

func splitWords(text string) []word {
	var words []word
	runes := []rune(strings.ToLower(text))
	start := -1

	for i, r := range runes {
		inWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case inWord && start < 0:
			start = i
		case !inWord && start >= 0:
			words = append(words, word{text: string(runes[start:i]), start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, word{text: string(runes[start:]), start: start, end: len(runes)})
	}
	return words
}

func matchTitle(title string, queryWords []word) (titleMatch, bool) {
	lowerTitle := strings.ToLower(title)
	titleWords := splitWords(title)
	used := make([]bool, len(titleWords)) // Each title word answers one query word

	var m titleMatch
	for _, qw := range queryWords {
		best, bestScore, bestIdx := []int(nil), -1, -1
		for i, tw := range titleWords {
			if used[i] {
				continue
			}
			if score, pos := matchWord(qw.text, tw); score >= 0 && (bestScore < 0 || score < bestScore) {
				best, bestScore, bestIdx = pos, score, i
			}
		}

		if bestScore < 0 {
			// Fall back to a raw substring anywhere in the title
			idx := strings.Index(lowerTitle, qw.text)
			if idx < 0 {
				return titleMatch{}, false
			}
			runeIdx := len([]rune(lowerTitle[:idx]))
			best, bestScore = span(runeIdx, runeIdx+len([]rune(qw.text))), scoreAnywhere+runeIdx
		} else {
			used[bestIdx] = true
		}

		m.score += bestScore
		m.matched = append(m.matched, best...)
	}

	if extra := len(titleWords) - len(queryWords); extra > 0 {
		m.score += extra * scoreExtraWord
	}

	slices.Sort(m.matched)
	m.matched = slices.Compact(m.matched)
	return m, true
}

// matchWord scores q against one title word; -1 means no match.
func matchWord(q string, tw word) (int, []int) {
	qLen := len([]rune(q))

	switch {
	case q == tw.text:
		return scoreExact, span(tw.start, tw.end)
	case strings.HasPrefix(tw.text, q):
		return scorePrefix, span(tw.start, tw.start+qLen)
	case strings.HasPrefix(q, tw.text):
		return scorePartial, span(tw.start, tw.end)
	}

	if idx := strings.Index(tw.text, q); idx >= 0 {
		off := len([]rune(tw.text[:idx]))
		return scoreInWord + off, span(tw.start+off, tw.start+off+qLen)
	}

	if maxEdits := allowedTypos(qLen); maxEdits > 0 {
		if dist, pos := editDistance(q, tw.text, tw.start); dist <= maxEdits {
			return scoreTypo + dist*20, pos
		}
	}
	return -1, nil
}

// allowedTypos: 1-3 chars = 0, 4-6 chars = 1, 7+ chars = 2
func allowedTypos(n int) int {
	switch {
	case n <= 3:
		return 0
	case n <= 6:
		return 1
	default:
		return 2
	}
}

// editDistance returns the Levenshtein distance between q and t and the
// positions in t (shifted by offset) that were kept or substituted.
func editDistance(q, t string, offset int) (int, []int) {
	qr, tr := []rune(q), []rune(t)
	rows, cols := len(qr)+1, len(tr)+1

	d := make([][]int, rows)
	for i := range d {
		d[i] = make([]int, cols)
		d[i][0] = i
	}
	for j := range cols {
		d[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if qr[i-1] == tr[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
		}
	}

	var pos []int
	for i, j := len(qr), len(tr); i > 0 && j > 0; {
		switch {
		case qr[i-1] == tr[j-1],
			d[i-1][j-1] <= d[i-1][j] && d[i-1][j-1] <= d[i][j-1]:
			pos = append(pos, offset+j-1)
			i--
			j--
		case d[i-1][j] < d[i][j-1]:
			i--
		default:
			j--
		}
	}
	slices.Reverse(pos)

	return d[len(qr)][len(tr)], pos
}

// span returns [start, end).
func span(start, end int) []int {
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}

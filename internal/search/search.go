// Package search finds movies within the saved collection.
package search

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/kinomark/internal/domain"
)

// Result is a ranked match with positions for highlighting.
type Result struct {
	Item           domain.SavedItem
	MatchedIndexes []int // Rune positions in the title
	Score          int   // Lower is better
}

// scoreLoose is added to fallback matches so they rank after any word match.
const scoreLoose = 1000

// Filter returns the items whose title or overview contains query,
// case-insensitively, keeping collection order. A blank query returns a copy
// of all items.
func Filter(query string, items []domain.SavedItem) []domain.SavedItem {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return slices.Clone(items)
	}

	var out []domain.SavedItem
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title()), query) ||
			strings.Contains(strings.ToLower(item.Overview()), query) {
			out = append(out, item)
		}
	}
	return out
}

// Rank orders items by how well their titles match query, tolerating typos
// and word order. If no title matches word-by-word it falls back to a
// subsequence match that ignores case and diacritics.
func Rank(query string, items []domain.SavedItem) []Result {
	query = strings.TrimSpace(query)
	if query == "" || len(items) == 0 {
		return nil
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title()
	}

	if matches := matchTitles(query, titles); len(matches) > 0 {
		results := make([]Result, len(matches))
		for i, m := range matches {
			results[i] = Result{Item: items[m.index], MatchedIndexes: m.matched, Score: m.score}
		}
		return results
	}

	ranks := fuzzy.RankFindNormalizedFold(query, titles)
	sort.Stable(ranks)

	results := make([]Result, len(ranks))
	for i, r := range ranks {
		results[i] = Result{Item: items[r.OriginalIndex], Score: scoreLoose + r.Distance}
	}
	return results
}

// Summary is the count line shown above the saved list.
func Summary(n int) string {
	if n == 1 {
		return "1 movie saved"
	}
	return fmt.Sprintf("%d movies saved", n)
}

// ResultSummary is the line shown above filtered results.
func ResultSummary(n int, query string) string {
	noun := "results"
	if n == 1 {
		noun = "result"
	}
	return fmt.Sprintf("%d %s for %q", n, noun, query)
}

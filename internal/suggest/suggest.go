// Package suggest ranks known names by similarity to an unknown one.
package suggest

import (
	"sort"

	"github.com/xrash/smetrics"
)

// MaxDistance is the largest edit distance at which a name is suggested.
const MaxDistance = 2

// Distance is the Levenshtein distance between a and b.
func Distance(a, b string) int {
	return smetrics.WagnerFischer(a, b, 1, 1, 1)
}

// Suggest returns the candidates within MaxDistance of id, closest first
// and lexicographically among equals. id itself and duplicates are
// skipped.
func Suggest(id string, candidates []string) []string {
	type match struct {
		name string
		dist int
	}
	var matches []match
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c == id || c == "" || seen[c] {
			continue
		}
		seen[c] = true
		// the distance is at least the length difference
		if diff := len(c) - len(id); diff > MaxDistance || -diff > MaxDistance {
			continue
		}
		if d := Distance(id, c); d <= MaxDistance {
			matches = append(matches, match{c, d})
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].name < matches[j].name
	})
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}

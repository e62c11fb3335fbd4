package match

import (
	"strings"
)

// DefaultThreshold is the lowest similarity Closest accepts.
const DefaultThreshold = 0.75

// normalize folds case and drops separators that vary between tools.
func normalize(s string) string {
	var sb strings.Builder

	for _, r := range strings.ToLower(s) {
		switch r {
		case '_', ' ', '\t', ':':
			continue
		}

		sb.WriteRune(r)
	}

	return sb.String()
}

// Closest returns the candidate most similar to name when its similarity
// reaches threshold. Ties go to the earlier candidate. An exact match is
// never suggested.
func Closest(name string, candidates []string, threshold float64) (string, bool) {
	want := normalize(name)

	var (
		best  string
		score float64
	)

	for _, c := range candidates {
		if c == name {
			continue
		}

		if s := Similarity(want, normalize(c)); s > score {
			best, score = c, s
		}
	}

	if best == "" || score < threshold {
		return "", false
	}

	return best, true
}

// Hint formats a "did you mean" suffix for a diagnostic message, or returns
// "" when nothing is close enough.
func Hint(name string, candidates []string) string {
	if c, ok := Closest(name, candidates, DefaultThreshold); ok {
		return "; did you mean " + c + "?"
	}

	return ""
}

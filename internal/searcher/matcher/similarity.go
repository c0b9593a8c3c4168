package matcher

import (
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Similarity returns 2*LCS(a, b) / (|a| + |b|) over runes, where LCS is the
// length of the longest common subsequence. The ratio is symmetric, 1 for
// identical strings and 0 when the strings share no character.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la+lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}
	if a == b {
		return 1
	}
	return float64(2*edlib.LCS(a, b)) / float64(la+lb)
}

// similarityBound is the largest ratio two strings of these lengths can
// reach: every rune of the shorter one matched.
func similarityBound(la, lb int) float64 {
	if la+lb == 0 {
		return 1
	}
	return float64(2*min(la, lb)) / float64(la+lb)
}

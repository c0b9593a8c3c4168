// Package normalizer canonicalizes catalog titles and search queries into a
// comparable form: accents folded, lower-cased, reduced to an allow-listed
// character set and split into whitespace-separated words.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Options controls the allow-list and article handling of a Normalizer.
type Options struct {
	// ExtraChars lists runes kept in addition to [a-z0-9 ].
	ExtraChars string
	// StripLeadingArticle drops a leading "the" when other words follow.
	StripLeadingArticle bool
}

// Normalizer is immutable and safe for concurrent use.
type Normalizer struct {
	extra         map[rune]struct{}
	stripArticles bool
}

var defaultNormalizer = New(Options{})

// New builds a Normalizer. Extra characters are lower-cased so they survive
// the case fold applied to the input.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		extra:         make(map[rune]struct{}),
		stripArticles: opts.StripLeadingArticle,
	}
	for _, r := range strings.ToLower(opts.ExtraChars) {
		if unicode.IsSpace(r) {
			continue
		}
		n.extra[r] = struct{}{}
	}
	return n
}

// Default returns the Normalizer with the plain [a-z0-9 ] allow-list.
func Default() *Normalizer {
	return defaultNormalizer
}

// Normalize runs text through the default Normalizer.
func Normalize(text string) (string, []string) {
	return defaultNormalizer.Normalize(text)
}

// Normalize returns the canonical string and its words. Runes outside the
// allow-list are dropped without leaving a gap, so "Half-Life" and
// "halflife" normalize identically. Empty or all-punctuation input yields ""
// and an empty slice.
func (n *Normalizer) Normalize(text string) (string, []string) {
	folded := foldAccents(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case n.allowed(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	if n.stripArticles && len(words) > 1 && words[0] == "the" {
		words = words[1:]
	}
	if len(words) == 0 {
		return "", []string{}
	}
	return strings.Join(words, " "), words
}

func (n *Normalizer) allowed(r rune) bool {
	if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
		return true
	}
	_, ok := n.extra[r]
	return ok
}

// foldAccents strips combining marks so "Pokémon" becomes "Pokemon".
func foldAccents(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	if folded, _, err := transform.String(t, s); err == nil {
		return folded
	}
	return s
}

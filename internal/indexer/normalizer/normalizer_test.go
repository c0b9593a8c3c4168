package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input     string
		wantText  string
		wantWords []string
	}{
		{"Elden Ring", "elden ring", []string{"elden", "ring"}},
		{"  Hollow\tKnight  ", "hollow knight", []string{"hollow", "knight"}},
		{"Pokémon: Scarlet & Violet", "pokemon scarlet violet", []string{"pokemon", "scarlet", "violet"}},
		{"L'Oréal", "loreal", []string{"loreal"}},
		{"Schitt’s Creek", "schitts creek", []string{"schitts", "creek"}},
		{"Half-Life 2", "halflife 2", []string{"halflife", "2"}},
		{"Spider-Man: Miles Morales", "spiderman miles morales", []string{"spiderman", "miles", "morales"}},
		{"Mario\u00a0Kart", "mario kart", []string{"mario", "kart"}},
		{"The Legend of Zelda", "the legend of zelda", []string{"the", "legend", "of", "zelda"}},
		{"go go go", "go go go", []string{"go", "go", "go"}},
		{"", "", []string{}},
		{"!!! ???", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			text, words := Normalize(tt.input)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantWords, words)
		})
	}
}

func TestNormalizeExtraChars(t *testing.T) {
	n := New(Options{ExtraChars: "&+"})

	text, words := n.Normalize("Ratchet & Clank")
	assert.Equal(t, "ratchet & clank", text)
	assert.Equal(t, []string{"ratchet", "&", "clank"}, words)

	text, _ = n.Normalize("C++ Primer!")
	assert.Equal(t, "c++ primer", text)
}

func TestNormalizeStripLeadingArticle(t *testing.T) {
	n := New(Options{StripLeadingArticle: true})

	text, _ := n.Normalize("The Legend of Zelda")
	assert.Equal(t, "legend of zelda", text)

	// A lone article is the whole title and is kept.
	text, words := n.Normalize("The")
	assert.Equal(t, "the", text)
	assert.Equal(t, []string{"the"}, words)

	text, _ = n.Normalize("Theatre of War")
	assert.Equal(t, "theatre of war", text)
}

func TestNormalizeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.String().Draw(t, "input")
		text, words := Normalize(input)

		again, againWords := Normalize(input)
		if text != again || strings.Join(words, "|") != strings.Join(againWords, "|") {
			t.Fatalf("normalize not deterministic for %q", input)
		}
		if text != strings.Join(words, " ") {
			t.Fatalf("text %q does not match words %q", text, words)
		}
		for _, r := range text {
			if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ') {
				t.Fatalf("rune %q outside allow-list in %q", r, text)
			}
		}
		if strings.Contains(text, "  ") || strings.TrimSpace(text) != text {
			t.Fatalf("whitespace not collapsed in %q", text)
		}
		// Normalizing a normalized string is a no-op.
		twice, _ := Normalize(text)
		if twice != text {
			t.Fatalf("normalize not idempotent: %q -> %q", text, twice)
		}
	})
}

package parser

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	q, err := Parse("  Elden   RING! ", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, "  Elden   RING! ", q.RawText)
	assert.Equal(t, "elden ring", q.NormalizedText)
	assert.Equal(t, []string{"elden", "ring"}, q.NormalizedWords)
	assert.Equal(t, 5, q.Limit)
	assert.False(t, q.Quoted())
}

func TestParseQuotedPhrase(t *testing.T) {
	tests := []struct {
		raw        string
		wantPhrase string
		wantText   string
	}{
		{`"den ri"`, "den ri", "den ri"},
		{`  "Hollow Knight"  `, "Hollow Knight", "hollow knight"},
		{"“stardew”", "stardew", "stardew"},
		{`""`, "", ""},
		{`"  "`, "", ""},
		{`"unterminated`, "", "unterminated"},
		{`"a" b "c"`, "", "a b c"},
		{`"Elden" Ring "DLC"`, "", "elden ring dlc"},
		{"“Hollow” “Knight”", "", "hollow knight"},
		{`"say \"hi\""`, `say \"hi\"`, "say hi"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q, err := Parse(tt.raw, 10, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPhrase, q.QuotedPhrase)
			assert.Equal(t, tt.wantText, q.NormalizedText)
		})
	}
}

func TestParseInvalidLimit(t *testing.T) {
	for _, limit := range []int{0, -1, -50} {
		q, err := Parse("elden", limit, nil)
		assert.Nil(t, q)
		var limitErr *InvalidLimitError
		require.ErrorAs(t, err, &limitErr)
		assert.Equal(t, limit, limitErr.Limit)
		assert.ErrorIs(t, err, apperrors.ErrInvalidLimit)
	}
}

func TestParseUsesNormalizer(t *testing.T) {
	n := normalizer.New(normalizer.Options{StripLeadingArticle: true})
	q, err := Parse("The Witcher 3", 3, n)
	require.NoError(t, err)
	assert.Equal(t, "witcher 3", q.NormalizedText)
}

func TestParseEmpty(t *testing.T) {
	q, err := Parse("", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, q.NormalizedText)
	assert.Empty(t, q.NormalizedWords)
}

package matcher

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, titles ...index.Title) *index.CorpusIndex {
	t.Helper()
	idx, err := index.Build(titles)
	require.NoError(t, err)
	return idx
}

func catalog(t *testing.T) *index.CorpusIndex {
	return buildIndex(t,
		index.Title{ID: "elden", Name: "Elden Ring"},
		index.Title{ID: "hollow", Name: "Hollow Knight"},
		index.Title{ID: "stardew", Name: "Stardew Valley"},
	)
}

func query(t *testing.T, text string, limit int) *parser.Query {
	t.Helper()
	q, err := parser.Parse(text, limit, nil)
	require.NoError(t, err)
	return q
}

func ids(results []MatchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.TitleID
	}
	return out
}

func TestMatchPrefix(t *testing.T) {
	idx := buildIndex(t,
		index.Title{ID: "3", Name: "Elden Ring: Nightreign"},
		index.Title{ID: "2", Name: "Eldena"},
		index.Title{ID: "1", Name: "Elden Ring"},
		index.Title{ID: "4", Name: "Hollow Knight"},
	)

	results := MatchPrefix(query(t, "Elden", 10), idx, 10)
	assert.Equal(t, []string{"2", "1", "3"}, ids(results), "shorter names first")
	for _, r := range results {
		assert.Equal(t, PrefixScore, r.Score)
		assert.Equal(t, StagePrefix, r.Stage)
	}

	assert.Equal(t, []string{"2", "1"}, ids(MatchPrefix(query(t, "elden", 2), idx, 2)))
	assert.Empty(t, MatchPrefix(query(t, "", 10), idx, 10))
	assert.Empty(t, MatchPrefix(query(t, "zelda", 10), idx, 10))
}

func TestMatchPrefixTieBreakByID(t *testing.T) {
	idx := buildIndex(t,
		index.Title{ID: "b", Name: "Doom"},
		index.Title{ID: "a", Name: "DOOM"},
	)
	assert.Equal(t, []string{"a", "b"}, ids(MatchPrefix(query(t, "do", 5), idx, 5)))
}

func TestMatchWords(t *testing.T) {
	idx := buildIndex(t,
		index.Title{ID: "1", Name: "Elden Ring"},
		index.Title{ID: "2", Name: "Ring Fit Adventure"},
		index.Title{ID: "3", Name: "Hollow Knight"},
		index.Title{ID: "4", Name: "Knightfall"},
	)

	results := MatchWords(query(t, "Elden Rign", 10), idx, 10)
	require.Len(t, results, 1)
	assert.Equal(t, MatchResult{TitleID: "1", Score: WordScore, Stage: StageWords}, results[0])

	results = MatchWords(query(t, "knight ring", 10), idx, 10)
	assert.Equal(t, []string{"1", "3", "2"}, ids(results))

	// The full query as a prefix still counts even when no word matches.
	results = MatchWords(query(t, "knightf", 10), idx, 10)
	assert.Equal(t, []string{"4"}, ids(results))

	assert.Empty(t, MatchWords(query(t, "   ", 10), idx, 10))
}

func TestMatchWordsQuotedPhrase(t *testing.T) {
	idx := buildIndex(t,
		index.Title{ID: "1", Name: "Elden Ring"},
		index.Title{ID: "2", Name: "Golden Rings"},
		index.Title{ID: "3", Name: "Ring Elden"},
	)

	results := MatchWords(query(t, `"den ring"`, 10), idx, 10)
	assert.Equal(t, []string{"1", "2"}, ids(results))

	// Unquoted, the same text matches on the word "ring" instead.
	results = MatchWords(query(t, "den ring", 10), idx, 10)
	assert.Equal(t, []string{"1", "3"}, ids(results))
}

func TestMatchFuzzyScenarios(t *testing.T) {
	idx := catalog(t)

	tests := []struct {
		query     string
		wantID    string
		wantScore float64
	}{
		{"Eldn", "elden", 8.0 / 9.0},
		{"rign", "elden", 0.75},
		{"Holow", "hollow", 10.0 / 11.0},
		{"Elden Rign", "elden", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results := MatchFuzzy(query(t, tt.query, 5), idx, 5, DefaultThreshold)
			require.NotEmpty(t, results)
			assert.Equal(t, tt.wantID, results[0].TitleID)
			assert.InDelta(t, tt.wantScore, results[0].Score, 1e-9)
			assert.Equal(t, StageFuzzy, results[0].Stage)
		})
	}

	assert.Empty(t, MatchFuzzy(query(t, "zzz", 5), idx, 5, DefaultThreshold))
	assert.Empty(t, MatchFuzzy(query(t, "", 5), idx, 5, DefaultThreshold))
}

func TestMatchFuzzyThresholdBoundary(t *testing.T) {
	idx := buildIndex(t,
		index.Title{ID: "at", Name: "abcxy"},
		index.Title{ID: "below", Name: "abcxyz"},
	)

	require.Equal(t, 0.6, Similarity("abcde", "abcxy"))
	require.Less(t, Similarity("abcde", "abcxyz"), 0.6)

	results := MatchFuzzy(query(t, "abcde", 5), idx, 5, 0.6)
	require.Len(t, results, 1)
	assert.Equal(t, "at", results[0].TitleID)
	assert.Equal(t, 0.6, results[0].Score)
}

func TestMatchFuzzyOrderingAndTopK(t *testing.T) {
	idx := buildIndex(t,
		index.Title{ID: "1", Name: "Marip"},
		index.Title{ID: "2", Name: "Marix"},
		index.Title{ID: "3", Name: "Mariox"},
		index.Title{ID: "4", Name: "Mario"},
	)

	results := MatchFuzzy(query(t, "mario", 10), idx, 10, DefaultThreshold)
	assert.Equal(t, []string{"4", "3", "1", "2"}, ids(results))

	// A later, better match is not crowded out by earlier acceptances.
	top := MatchFuzzy(query(t, "mario", 1), idx, 1, DefaultThreshold)
	assert.Equal(t, []string{"4"}, ids(top))
}

func TestMatchFuzzyQueryWordPairs(t *testing.T) {
	idx := buildIndex(t, index.Title{ID: "1", Name: "Elden Ring"})

	results := MatchFuzzy(query(t, "eldn rign", 5), idx, 5, DefaultThreshold)
	require.Len(t, results, 1)
	assert.InDelta(t, 8.0/9.0, results[0].Score, 1e-9)

	// Quoted phrases are compared whole, never word by word.
	results = MatchFuzzy(query(t, `"xq rign"`, 5), idx, 5, DefaultThreshold)
	assert.Empty(t, results)
	results = MatchFuzzy(query(t, "xq rign", 5), idx, 5, DefaultThreshold)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.75, results[0].Score, 1e-9)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("zelda", "zelda"))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.Equal(t, 0.0, Similarity("abc", ""))
	assert.InDelta(t, 8.0/9.0, Similarity("eldn", "elden"), 1e-12)
	assert.InDelta(t, 0.75, Similarity("rign", "ring"), 1e-12)
	assert.Equal(t, Similarity("holow", "hollow"), Similarity("hollow", "holow"))
}

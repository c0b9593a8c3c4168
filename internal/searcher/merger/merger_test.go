package merger

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/matcher"
	"github.com/stretchr/testify/assert"
)

func lengths(m map[string]int) NameLen {
	return func(id string) int { return m[id] }
}

func TestMergeKeepsHighestScore(t *testing.T) {
	prefix := []matcher.MatchResult{{TitleID: "a", Score: 1, Stage: matcher.StagePrefix}}
	words := []matcher.MatchResult{
		{TitleID: "a", Score: 0.8, Stage: matcher.StageWords},
		{TitleID: "b", Score: 0.8, Stage: matcher.StageWords},
	}
	fuzzy := []matcher.MatchResult{
		{TitleID: "b", Score: 0.9, Stage: matcher.StageFuzzy},
		{TitleID: "c", Score: 0.7, Stage: matcher.StageFuzzy},
	}

	got := Merge(10, nil, prefix, words, fuzzy)
	assert.Equal(t, []matcher.MatchResult{
		{TitleID: "a", Score: 1, Stage: matcher.StagePrefix},
		{TitleID: "b", Score: 0.9, Stage: matcher.StageFuzzy},
		{TitleID: "c", Score: 0.7, Stage: matcher.StageFuzzy},
	}, got)
}

func TestMergeTieKeepsLowestStage(t *testing.T) {
	got := Merge(10, nil,
		[]matcher.MatchResult{{TitleID: "x", Score: 0.8, Stage: matcher.StageFuzzy}},
		[]matcher.MatchResult{{TitleID: "x", Score: 0.8, Stage: matcher.StageWords}},
	)
	assert.Equal(t, []matcher.MatchResult{{TitleID: "x", Score: 0.8, Stage: matcher.StageWords}}, got)
}

func TestMergeOrderingAndTruncation(t *testing.T) {
	results := []matcher.MatchResult{
		{TitleID: "d", Score: 0.8, Stage: matcher.StageFuzzy},
		{TitleID: "c", Score: 0.8, Stage: matcher.StageWords},
		{TitleID: "b", Score: 0.8, Stage: matcher.StageWords},
		{TitleID: "a", Score: 0.8, Stage: matcher.StageWords},
		{TitleID: "e", Score: 0.95, Stage: matcher.StageFuzzy},
	}
	nameLen := lengths(map[string]int{"a": 12, "b": 5, "c": 5, "d": 1, "e": 30})

	got := Merge(10, nameLen, results)
	var order []string
	for _, r := range got {
		order = append(order, r.TitleID)
	}
	assert.Equal(t, []string{"e", "b", "c", "a", "d"}, order)

	top := Merge(2, nameLen, results)
	assert.Len(t, top, 2)
	assert.Equal(t, "e", top[0].TitleID)
	assert.Equal(t, "b", top[1].TitleID)
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(5, nil))
	assert.Empty(t, Merge(0, nil, []matcher.MatchResult{{TitleID: "a", Score: 1, Stage: 1}}))
}

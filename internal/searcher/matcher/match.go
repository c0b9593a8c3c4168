// Package matcher implements the three title matching stages: indexed
// prefix lookup, indexed word lookup and character-level fuzzy scoring.
// Stages are independent of each other; package ranker decides which of them
// run for a query and merges their output.
package matcher

import (
	"sort"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
)

// Stage identifies the strategy that produced a match. Lower stages are
// cheaper and take precedence on equal scores.
type Stage int

const (
	StagePrefix Stage = 1
	StageWords  Stage = 2
	StageFuzzy  Stage = 3
)

func (s Stage) String() string {
	switch s {
	case StagePrefix:
		return "prefix"
	case StageWords:
		return "words"
	case StageFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

const (
	PrefixScore      = 1.0
	WordScore        = 0.8
	DefaultThreshold = 0.6
)

// MatchResult is one ranked title id.
type MatchResult struct {
	TitleID string  `json:"id"`
	Score   float64 `json:"score"`
	Stage   Stage   `json:"stage"`
}

type candidate struct {
	id      string
	nameLen int
	score   float64
}

func newCandidate(rec index.TitleRecord, score float64) candidate {
	return candidate{
		id:      rec.ID,
		nameLen: utf8.RuneCountInString(rec.NormalizedName),
		score:   score,
	}
}

// collect resolves ids against idx, dropping repeats.
func collect(idx *index.CorpusIndex, ids []string, score float64) []candidate {
	seen := make(map[string]struct{}, len(ids))
	out := make([]candidate, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rec, ok := idx.Lookup(id)
		if !ok {
			continue
		}
		out = append(out, newCandidate(rec, score))
	}
	return out
}

// rank orders candidates by score descending, then shorter normalized name,
// then id, and keeps at most limit of them.
func rank(cands []candidate, stage Stage, limit int) []MatchResult {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].nameLen != cands[j].nameLen {
			return cands[i].nameLen < cands[j].nameLen
		}
		return cands[i].id < cands[j].id
	})
	if len(cands) > limit {
		cands = cands[:limit]
	}
	results := make([]MatchResult, len(cands))
	for i, c := range cands {
		results[i] = MatchResult{TitleID: c.id, Score: c.score, Stage: stage}
	}
	return results
}

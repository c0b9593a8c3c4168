package matcher

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/parser"
)

// MatchWords returns titles containing any word of the query, plus titles
// that start with the full normalized query, all scored WordScore.
//
// A quoted phrase is not split: titles match when their normalized name
// contains the normalized phrase as a substring.
func MatchWords(q *parser.Query, idx *index.CorpusIndex, limit int) []MatchResult {
	if q.NormalizedText == "" || limit <= 0 {
		return nil
	}

	if q.Quoted() {
		var cands []candidate
		for _, rec := range idx.Titles() {
			if strings.Contains(rec.NormalizedName, q.NormalizedText) {
				cands = append(cands, newCandidate(rec, WordScore))
			}
		}
		return rank(cands, StageWords, limit)
	}

	if len(q.NormalizedWords) == 0 {
		return nil
	}
	var ids []string
	for _, w := range q.NormalizedWords {
		ids = append(ids, idx.ContainingWord(w)...)
	}
	ids = append(ids, idx.StartingWith(q.NormalizedText)...)
	return rank(collect(idx, ids, WordScore), StageWords, limit)
}

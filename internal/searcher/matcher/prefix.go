package matcher

import (
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/parser"
)

// MatchPrefix returns titles whose normalized name starts with the normalized
// query, all scored PrefixScore. The whole prefix range is ordered before
// truncating so the shortest names win regardless of lexical position.
func MatchPrefix(q *parser.Query, idx *index.CorpusIndex, limit int) []MatchResult {
	if q.NormalizedText == "" || limit <= 0 {
		return nil
	}
	ids := idx.StartingWith(q.NormalizedText)
	return rank(collect(idx, ids, PrefixScore), StagePrefix, limit)
}

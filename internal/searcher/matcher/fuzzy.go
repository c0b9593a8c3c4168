package matcher

import (
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/parser"
)

// MatchFuzzy scores every title by its best Similarity to the query and
// keeps those at or above threshold (DefaultThreshold when threshold <= 0).
// The best similarity is the maximum over:
//
//   - the whole query against the whole normalized name,
//   - the whole query against each title word,
//   - each query word against each title word, for unquoted multi-word
//     queries.
//
// The full corpus is scanned before ordering and truncating, so the result is
// the true top-limit rather than the first limit acceptances.
func MatchFuzzy(q *parser.Query, idx *index.CorpusIndex, limit int, threshold float64) []MatchResult {
	if q.NormalizedText == "" || limit <= 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	query := newTerm(q.NormalizedText)
	var words []term
	if !q.Quoted() && len(q.NormalizedWords) > 1 {
		words = make([]term, len(q.NormalizedWords))
		for i, w := range q.NormalizedWords {
			words[i] = newTerm(w)
		}
	}

	var cands []candidate
	for _, rec := range idx.Titles() {
		if best := bestSimilarity(query, words, rec); best >= threshold {
			cands = append(cands, newCandidate(rec, best))
		}
	}
	return rank(cands, StageFuzzy, limit)
}

type term struct {
	text string
	size int
}

func newTerm(s string) term {
	return term{text: s, size: utf8.RuneCountInString(s)}
}

func bestSimilarity(query term, queryWords []term, rec index.TitleRecord) float64 {
	best := improve(0, query, newTerm(rec.NormalizedName))
	for _, w := range rec.NormalizedWords {
		tw := newTerm(w)
		best = improve(best, query, tw)
		for _, qw := range queryWords {
			best = improve(best, qw, tw)
		}
	}
	return best
}

// improve returns max(best, Similarity(a, b)), skipping the LCS computation
// when the length bound already rules out an improvement.
func improve(best float64, a, b term) float64 {
	if best >= 1 || similarityBound(a.size, b.size) <= best {
		return best
	}
	if s := Similarity(a.text, b.text); s > best {
		return s
	}
	return best
}

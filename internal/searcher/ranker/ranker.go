// Package ranker runs the title matching pipeline. Stages are tried in
// increasing cost order and a stage only runs while the distinct ids found so
// far are fewer than the requested limit.
package ranker

import (
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/parser"
)

type options struct {
	threshold float64
}

// Option tunes a search.
type Option func(*options)

// WithThreshold sets the minimum fuzzy similarity. Values outside (0, 1] are
// ignored.
func WithThreshold(threshold float64) Option {
	return func(o *options) {
		if threshold > 0 && threshold <= 1 {
			o.threshold = threshold
		}
	}
}

// Outcome is the ranked result of one query together with what the pipeline
// did to produce it.
type Outcome struct {
	Results []matcher.MatchResult
	// StagesRun lists the stages executed, in order.
	StagesRun []matcher.Stage
	// NewIDs counts, per stage, the ids that stage added to the candidate set.
	NewIDs map[matcher.Stage]int
}

// Search parses text against idx's normalizer and returns at most limit
// ranked matches. A non-positive limit fails with *parser.InvalidLimitError.
// A nil or empty index yields no results.
func Search(idx *index.CorpusIndex, text string, limit int, opts ...Option) ([]matcher.MatchResult, error) {
	q, err := Parse(idx, text, limit)
	if err != nil {
		return nil, err
	}
	return Run(q, idx, opts...).Results, nil
}

// Parse builds a query normalized the same way as idx.
func Parse(idx *index.CorpusIndex, text string, limit int) (*parser.Query, error) {
	var n *normalizer.Normalizer
	if idx != nil {
		n = idx.Normalizer()
	}
	return parser.Parse(text, limit, n)
}

// Run executes the stage pipeline for a parsed query. It does not mutate idx
// and returns identical output for identical input.
func Run(q *parser.Query, idx *index.CorpusIndex, opts ...Option) Outcome {
	o := options{threshold: matcher.DefaultThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	out := Outcome{
		Results: []matcher.MatchResult{},
		NewIDs:  make(map[matcher.Stage]int),
	}
	if idx == nil || idx.Len() == 0 || q.NormalizedText == "" {
		return out
	}

	seen := make(map[string]struct{})
	var stages [][]matcher.MatchResult
	record := func(stage matcher.Stage, results []matcher.MatchResult) {
		out.StagesRun = append(out.StagesRun, stage)
		for _, r := range results {
			if _, ok := seen[r.TitleID]; !ok {
				seen[r.TitleID] = struct{}{}
				out.NewIDs[stage]++
			}
		}
		stages = append(stages, results)
	}

	record(matcher.StagePrefix, matcher.MatchPrefix(q, idx, q.Limit))

	if len(seen) < q.Limit {
		// Stage 2 re-finds prefix hits; widen its window so they cannot
		// crowd out new ids.
		record(matcher.StageWords, matcher.MatchWords(q, idx, q.Limit+len(seen)))
	}

	if len(seen) < q.Limit {
		fuzzy := matcher.MatchFuzzy(q, idx, q.Limit+len(seen), o.threshold)
		unseen := fuzzy[:0:0]
		for _, r := range fuzzy {
			if _, ok := seen[r.TitleID]; !ok {
				unseen = append(unseen, r)
			}
		}
		record(matcher.StageFuzzy, unseen)
	}

	out.Results = merger.Merge(q.Limit, nameLen(idx), stages...)
	return out
}

func nameLen(idx *index.CorpusIndex) merger.NameLen {
	return func(id string) int {
		rec, _ := idx.Lookup(id)
		return utf8.RuneCountInString(rec.NormalizedName)
	}
}

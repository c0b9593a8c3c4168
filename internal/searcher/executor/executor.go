// Package executor runs a search request against the active snapshot:
// limit policy, ranking, result shaping and metrics.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/metrics"
)

// Hit is one ranked title.
type Hit struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Score float64       `json:"score"`
	Stage matcher.Stage `json:"stage"`
}

type SearchResult struct {
	Query string `json:"query"`
	// NormalizedQuery is the canonical form the query was matched as.
	NormalizedQuery string `json:"normalized_query"`
	Limit           int    `json:"limit"`
	Version         uint64 `json:"version"`
	// TotalHits counts distinct titles found by the stages that ran, before
	// truncation to Limit.
	TotalHits int   `json:"total_hits"`
	Results   []Hit `json:"results"`
}

// Snapshots yields the active corpus snapshot.
type Snapshots interface {
	Current() *indexer.Snapshot
}

type Executor struct {
	snapshots Snapshots
	cfg       config.SearchConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an Executor. m may be nil.
func New(snapshots Snapshots, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	return &Executor{
		snapshots: snapshots,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "query-executor"),
	}
}

// ResolveLimit applies the request limit policy: 0 means the configured
// default, values above the maximum are clamped, negatives are rejected.
func (e *Executor) ResolveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, &parser.InvalidLimitError{Limit: limit}
	case limit == 0:
		return e.cfg.DefaultLimit, nil
	case e.cfg.MaxResults > 0 && limit > e.cfg.MaxResults:
		return e.cfg.MaxResults, nil
	default:
		return limit, nil
	}
}

// Snapshot returns the active snapshot or apperrors.ErrIndexNotReady.
func (e *Executor) Snapshot() (*indexer.Snapshot, error) {
	snap := e.snapshots.Current()
	if snap == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	return snap, nil
}

// Execute resolves limit and searches the active snapshot.
func (e *Executor) Execute(ctx context.Context, text string, limit int) (*SearchResult, error) {
	limit, err := e.ResolveLimit(limit)
	if err != nil {
		e.countQuery("error")
		return nil, err
	}
	snap, err := e.Snapshot()
	if err != nil {
		e.countQuery("error")
		return nil, err
	}
	return e.ExecuteOn(ctx, snap, text, limit)
}

// ExecuteOn searches snap with an already resolved limit.
func (e *Executor) ExecuteOn(ctx context.Context, snap *indexer.Snapshot, text string, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		e.countQuery("error")
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	start := time.Now()
	q, err := ranker.Parse(snap.Index, text, limit)
	if err != nil {
		e.countQuery("error")
		return nil, err
	}
	out := ranker.Run(q, snap.Index, ranker.WithThreshold(e.cfg.FuzzyThreshold))

	result := &SearchResult{
		Query:           text,
		NormalizedQuery: q.NormalizedText,
		Limit:           limit,
		Version:         snap.Version,
		Results:         make([]Hit, 0, len(out.Results)),
	}
	for _, n := range out.NewIDs {
		result.TotalHits += n
	}
	for _, r := range out.Results {
		rec, _ := snap.Index.Lookup(r.TitleID)
		result.Results = append(result.Results, Hit{
			ID:    r.TitleID,
			Name:  rec.RawName,
			Score: r.Score,
			Stage: r.Stage,
		})
	}

	e.observe(out, len(result.Results))
	logger.FromContext(ctx).Debug("query executed",
		"query", text,
		"normalized", q.NormalizedText,
		"stages", out.StagesRun,
		"total_hits", result.TotalHits,
		"results", len(result.Results),
		"version", snap.Version,
		"duration", time.Since(start),
	)
	return result, nil
}

func (e *Executor) observe(out ranker.Outcome, returned int) {
	if e.metrics == nil {
		return
	}
	for _, stage := range out.StagesRun {
		label := strconv.Itoa(int(stage))
		e.metrics.StageRunsTotal.WithLabelValues(label).Inc()
		e.metrics.StageMatchesTotal.WithLabelValues(label).Add(float64(out.NewIDs[stage]))
	}
	e.metrics.SearchResultsCount.Observe(float64(returned))
	if returned == 0 {
		e.countQuery("zero_result")
	} else {
		e.countQuery("hit")
	}
}

func (e *Executor) countQuery(resultType string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

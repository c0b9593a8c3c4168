package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/middleware"
)

// Rebuilder triggers and reports index snapshots.
type Rebuilder interface {
	Current() *indexer.Snapshot
	Rebuild(ctx context.Context) (*indexer.Snapshot, error)
}

// IndexInfo describes a snapshot.
type IndexInfo struct {
	Version uint64    `json:"version"`
	Titles  int       `json:"titles"`
	Source  string    `json:"source"`
	BuiltAt time.Time `json:"built_at"`
}

type Handler struct {
	executor  *executor.Executor
	rebuilder Rebuilder
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Handler. queryCache, collector and m may be nil.
func New(exec *executor.Executor, rebuilder Rebuilder, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		executor:  exec,
		rebuilder: rebuilder,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/index", h.Index)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?q=&limit=. A missing q is an empty query
// and yields no results; a missing or zero limit uses the default.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	query := r.URL.Query().Get("q")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: limit %q is not an integer", apperrors.ErrInvalidLimit, limitStr))
			return
		}
		limit = parsed
	}
	limit, err := h.executor.ResolveLimit(limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.executor.Snapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	q, err := ranker.Parse(snap.Index, query, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.ExecuteOn(ctx, snap, query, limit)
	}
	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil && q.NormalizedText != "" {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, cache.Key(snap.Version, q), compute)
	} else {
		result, err = compute(ctx)
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}
	// Cached entries are shared by every spelling that normalizes the same.
	response := *result
	response.Query = query

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus(h.cache != nil, cacheHit)).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"total_hits", response.TotalHits,
		"returned", len(response.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(ctx, &response, cacheHit, latency)
	h.writeJSON(w, http.StatusOK, &response)
}

func (h *Handler) track(ctx context.Context, result *executor.SearchResult, cacheHit bool, latency time.Duration) {
	if h.collector == nil {
		return
	}
	event := analytics.SearchEvent{
		Type:            analytics.EventSearch,
		Query:           result.Query,
		NormalizedQuery: result.NormalizedQuery,
		Limit:           result.Limit,
		TotalHits:       result.TotalHits,
		Returned:        len(result.Results),
		LatencyMs:       latency.Milliseconds(),
		CacheHit:        cacheHit,
		Version:         result.Version,
		Timestamp:       time.Now().UTC(),
		RequestID:       middleware.GetRequestID(ctx),
	}
	if len(result.Results) == 0 {
		event.Type = analytics.EventZeroResult
	} else {
		event.TopStage = int(result.Results[0].Stage)
	}
	h.collector.Track(event)
}

// Rebuild serves POST /api/v1/index/rebuild. A failed rebuild leaves the
// previous snapshot serving; duplicate ids answer 409.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	snap, err := h.rebuilder.Rebuild(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("index rebuild failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info(snap))
}

// Index serves GET /api/v1/index.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	snap := h.rebuilder.Current()
	if snap == nil {
		h.writeError(w, apperrors.ErrIndexNotReady)
		return
	}
	h.writeJSON(w, http.StatusOK, info(snap))
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func info(snap *indexer.Snapshot) IndexInfo {
	return IndexInfo{
		Version: snap.Version,
		Titles:  snap.Index.Len(),
		Source:  snap.Source,
		BuiltAt: snap.BuiltAt,
	}
}

func cacheStatus(enabled, hit bool) string {
	switch {
	case !enabled:
		return "disabled"
	case hit:
		return "hit"
	default:
		return "miss"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Server-side failures are reported
// without detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var limitErr *parser.InvalidLimitError
	switch {
	case errors.As(err, &limitErr):
		message = limitErr.Error()
	case status >= http.StatusInternalServerError && !errors.Is(err, apperrors.ErrIndexNotReady) && !errors.Is(err, apperrors.ErrTimeout):
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

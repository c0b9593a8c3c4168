package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/kafka"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorBatchesAndFlushesOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 2, time.Hour, nil)
	c.Start(context.Background())

	for _, q := range []string{"elden", "mario", "zelda"} {
		c.Track(SearchEvent{Type: EventSearch, NormalizedQuery: q})
	}
	require.Eventually(t, func() bool { return pub.total() >= 2 }, time.Second, 5*time.Millisecond)

	c.Close()
	assert.Equal(t, 3, pub.total())
	assert.Equal(t, "elden", pub.batches[0][0].Key)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 1, 10, time.Hour, nil)
	// Not started: the buffer fills after one event.
	c.Track(SearchEvent{Query: "a"})
	c.Track(SearchEvent{Query: "b"})
	assert.Len(t, c.eventCh, 1)
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	events := []SearchEvent{
		{NormalizedQuery: "elden ring", Returned: 1, TopStage: 1, LatencyMs: 2},
		{NormalizedQuery: "elden ring", Returned: 1, TopStage: 1, LatencyMs: 4, CacheHit: true},
		{NormalizedQuery: "eldn", Returned: 1, TopStage: 3, LatencyMs: 9},
		{NormalizedQuery: "zzz", Returned: 0, LatencyMs: 7},
	}
	for _, e := range events {
		b, err := json.Marshal(e)
		require.NoError(t, err)
		require.NoError(t, handle(context.Background(), nil, b))
	}
	require.NoError(t, handle(context.Background(), nil, []byte("garbage")))

	stats := agg.Stats(0)
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, map[string]int64{"1": 2, "3": 1}, stats.TopStages)
	assert.Equal(t, QueryCount{Query: "elden ring", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "zzz", Count: 1}}, stats.ZeroResultQueries)
	assert.InDelta(t, 5.5, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(9), stats.P99LatencyMs)

	assert.Len(t, agg.Stats(1).TopQueries, 1)
}

func TestAnalyticsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SearchEvent{NormalizedQuery: "hades", Returned: 1, TopStage: 1})
	agg.Record(SearchEvent{NormalizedQuery: "celeste", Returned: 1, TopStage: 2})
	mux := http.NewServeMux()
	NewHandler(agg).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.TotalSearches)
	assert.Len(t, stats.TopQueries, 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analytics/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, agg.Stats(0).TotalSearches)
	assert.Empty(t, agg.Stats(0).TopQueries)
}

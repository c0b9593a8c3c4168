package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one answered search request.
type SearchEvent struct {
	Type            EventType `json:"type"`
	Query           string    `json:"query"`
	NormalizedQuery string    `json:"normalized_query"`
	Limit           int       `json:"limit"`
	TotalHits       int       `json:"total_hits"`
	Returned        int       `json:"returned"`
	// TopStage is the stage of the best result, 0 when nothing matched.
	TopStage  int       `json:"top_stage"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

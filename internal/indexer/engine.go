package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/metrics"
)

// Snapshot is an immutable, versioned corpus index. Callers keep the
// snapshot they were handed for the whole of a request.
type Snapshot struct {
	Index   *index.CorpusIndex
	Version uint64
	// LoadedAt is taken before the catalog is read. Changes committed at or
	// after it may be missing from Index.
	LoadedAt time.Time
	BuiltAt  time.Time
	Source   string
}

// RebuildNotice is published after every successful rebuild.
type RebuildNotice struct {
	Version uint64    `json:"version"`
	Titles  int       `json:"titles"`
	Source  string    `json:"source"`
	BuiltAt time.Time `json:"built_at"`
}

// Publisher delivers rebuild notices.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// RebuildHook runs after a new snapshot becomes active.
type RebuildHook func(ctx context.Context, snap *Snapshot)

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithNormalizer(n *normalizer.Normalizer) Option {
	return func(e *Engine) { e.normalizer = n }
}

func WithRebuildHook(h RebuildHook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, h) }
}

// Engine owns the active snapshot. Readers call Current without locking;
// Rebuild builds a complete replacement and swaps it in atomically.
type Engine struct {
	source     catalog.Source
	normalizer *normalizer.Normalizer
	publisher  Publisher
	metrics    *metrics.Metrics
	hooks      []RebuildHook
	logger     *slog.Logger

	current atomic.Pointer[Snapshot]
	// rebuildMu serializes rebuilds and guards version.
	rebuildMu sync.Mutex
	version   uint64
}

func NewEngine(source catalog.Source, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		logger: slog.Default().With("component", "indexer", "source", source.Name()),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.normalizer == nil {
		e.normalizer = normalizer.Default()
	}
	return e
}

// Current returns the active snapshot, or nil before the first successful
// rebuild.
func (e *Engine) Current() *Snapshot {
	return e.current.Load()
}

// Rebuild loads the catalog and replaces the active snapshot. On any error
// the previous snapshot stays active and the error is returned; a repeated
// title id yields an error matching apperrors.ErrDuplicateID.
func (e *Engine) Rebuild(ctx context.Context) (*Snapshot, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	snap, err := e.build(ctx)
	if e.metrics != nil {
		e.metrics.IndexRebuildDuration.Observe(time.Since(start).Seconds())
		e.metrics.IndexRebuildsTotal.WithLabelValues(rebuildStatus(err)).Inc()
	}
	if err != nil {
		e.logger.Error("index rebuild failed, keeping previous snapshot",
			"error", err,
			"active_version", e.version,
		)
		return nil, err
	}

	e.current.Store(snap)
	if e.metrics != nil {
		e.metrics.CorpusTitles.Set(float64(snap.Index.Len()))
		e.metrics.SnapshotVersion.Set(float64(snap.Version))
	}
	e.logger.Info("index rebuilt",
		"version", snap.Version,
		"titles", snap.Index.Len(),
		"duration", time.Since(start),
	)

	for _, hook := range e.hooks {
		hook(ctx, snap)
	}
	e.notify(ctx, snap)
	return snap, nil
}

func (e *Engine) build(ctx context.Context) (*Snapshot, error) {
	loadedAt := time.Now().UTC()
	titles, err := e.source.Titles(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog from %s: %w", e.source.Name(), err)
	}
	idx, err := index.BuildWith(e.normalizer, titles)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	e.version++
	return &Snapshot{
		Index:    idx,
		Version:  e.version,
		LoadedAt: loadedAt,
		BuiltAt:  time.Now().UTC(),
		Source:   e.source.Name(),
	}, nil
}

func (e *Engine) notify(ctx context.Context, snap *Snapshot) {
	if e.publisher == nil {
		return
	}
	err := e.publisher.Publish(ctx, kafka.Event{
		Key: strconv.FormatUint(snap.Version, 10),
		Value: RebuildNotice{
			Version: snap.Version,
			Titles:  snap.Index.Len(),
			Source:  snap.Source,
			BuiltAt: snap.BuiltAt,
		},
	})
	if err != nil {
		e.logger.Warn("publishing rebuild notice failed", "version", snap.Version, "error", err)
	}
}

// StartRefreshLoop rebuilds every interval until ctx is cancelled. A
// non-positive interval disables periodic rebuilds.
func (e *Engine) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("refresh loop stopping")
				return
			case <-ticker.C:
				if _, err := e.Rebuild(ctx); err != nil && ctx.Err() == nil {
					e.logger.Warn("periodic rebuild failed", "error", err)
				}
			}
		}
	}()
}

func rebuildStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrDuplicateID):
		return "duplicate_id"
	default:
		return "error"
	}
}

// Package cache stores search results in Redis. Keys embed the snapshot
// version, so a rebuild can never serve results from an older index, and
// concurrent misses for the same key are coalesced with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/resilience"
)

const (
	keyPrefix      = "gcs:search:"
	computeTimeout = 5 * time.Second
)

// Store is the subset of the Redis client the cache needs. Get reports a
// missing key with pkgredis.ErrMiss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key identifies the result of q against snapshot version. Queries that
// normalize identically share a key; quoted and unquoted forms do not.
func Key(version uint64, q *parser.Query) string {
	raw := fmt.Sprintf("%t|%s|limit=%d", q.Quoted(), q.NormalizedText, q.Limit)
	hash := sha256.Sum256([]byte(raw))
	return keyPrefix + "v" + strconv.FormatUint(version, 10) + ":" + fmt.Sprintf("%x", hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgredis.ErrMiss) && !errors.Is(err, resilience.ErrBreakerOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil && !errors.Is(err, resilience.ErrBreakerOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key or computes and stores it.
// Only one compute runs per key at a time; the boolean reports a cache hit.
// Store failures degrade to computing without caching.
//
// The compute is shared by every caller waiting on key, so it runs under a
// context detached from ctx and bounded by computeTimeout. A caller whose ctx
// ends stops waiting with ErrTimeout while the others still get the result.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		result, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		c.Set(computeCtx, key, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%w: %v", apperrors.ErrTimeout, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.SearchResult), false, nil
	}
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

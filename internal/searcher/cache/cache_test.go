package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/resilience"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memoryStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func mustParse(t *testing.T, text string, limit int) *parser.Query {
	t.Helper()
	q, err := parser.Parse(text, limit, nil)
	require.NoError(t, err)
	return q
}

func TestKey(t *testing.T) {
	a := Key(1, mustParse(t, "Elden  RING", 5))
	assert.Equal(t, a, Key(1, mustParse(t, "elden ring", 5)))
	assert.True(t, strings.HasPrefix(a, "gcs:search:v1:"))
	assert.NotEqual(t, a, Key(2, mustParse(t, "elden ring", 5)))
	assert.NotEqual(t, a, Key(1, mustParse(t, "elden ring", 6)))
	assert.NotEqual(t, a, Key(1, mustParse(t, `"elden ring"`, 5)))
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	key := Key(1, mustParse(t, "elden", 5))
	calls := 0
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls++
		return &executor.SearchResult{Query: "elden", Version: 1, Results: []executor.Hit{{ID: "1", Name: "Elden Ring", Score: 1, Stage: 1}}}, nil
	}

	first, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrComputeError(t *testing.T) {
	store := newMemoryStore()
	c := New(store, time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*executor.SearchResult, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestGetOrComputeCoalesces(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return &executor.SearchResult{Query: "mario"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "same", compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestStoreFailureFallsBackToCompute(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	c := New(store, time.Minute, nil)

	result, hit, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*executor.SearchResult, error) {
		return &executor.SearchResult{Query: "zelda"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "zelda", result.Query)
}

func TestInvalidate(t *testing.T) {
	store := newMemoryStore()
	c := New(store, time.Minute, nil)
	c.Set(context.Background(), Key(1, mustParse(t, "a", 1)), &executor.SearchResult{})
	c.Set(context.Background(), Key(2, mustParse(t, "b", 1)), &executor.SearchResult{})
	store.data["other:key"] = []byte("x")

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, store.data, 1)
}

func TestBreakerShedsFailingStore(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	breaker := resilience.NewBreaker("cache", resilience.BreakerConfig{Failures: 2, Reset: time.Hour})
	guarded := WithBreaker(store, breaker)

	_, err := guarded.Get(context.Background(), "k")
	assert.EqualError(t, err, "connection refused")
	_, err = guarded.Get(context.Background(), "k")
	assert.EqualError(t, err, "connection refused")
	_, err = guarded.Get(context.Background(), "k")
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.ErrorIs(t, guarded.Set(context.Background(), "k", []byte("v"), time.Minute), resilience.ErrBreakerOpen)
	assert.Empty(t, store.data)

	c := New(guarded, time.Minute, nil)
	result, hit, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*executor.SearchResult, error) {
		return &executor.SearchResult{Query: "metroid"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "metroid", result.Query)
}

func TestBreakerTreatsMissAsSuccess(t *testing.T) {
	store := newMemoryStore()
	breaker := resilience.NewBreaker("cache", resilience.BreakerConfig{Failures: 1, Reset: time.Hour})
	guarded := WithBreaker(store, breaker)

	for i := 0; i < 3; i++ {
		_, err := guarded.Get(context.Background(), "absent")
		assert.ErrorIs(t, err, pkgredis.ErrMiss)
	}
	assert.Equal(t, resilience.BreakerClosed, breaker.State())

	require.NoError(t, guarded.Set(context.Background(), "present", []byte("v"), time.Minute))
	data, err := guarded.Get(context.Background(), "present")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
}

func TestGetOrComputeOutlivesCancelledCaller(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &executor.SearchResult{Query: "zelda"}, nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(firstCtx, "shared", compute)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		result *executor.SearchResult
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		result, _, err := c.GetOrCompute(context.Background(), "shared", compute)
		second <- outcome{result, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, apperrors.ErrTimeout)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "zelda", got.result.Query)
}

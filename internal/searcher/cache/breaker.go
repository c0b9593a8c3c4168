package cache

import (
	"context"
	"errors"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/resilience"
)

// guardedStore sheds calls to a failing store. Misses count as successful
// round trips.
type guardedStore struct {
	store   Store
	breaker *resilience.Breaker
}

// WithBreaker wraps store so that calls are shed while b is open.
func WithBreaker(store Store, b *resilience.Breaker) Store {
	return &guardedStore{store: store, breaker: b}
}

func (g *guardedStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	miss := false
	err := g.breaker.Do(func() error {
		var err error
		data, err = g.store.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrMiss) {
			miss = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if miss {
		return nil, pkgredis.ErrMiss
	}
	return data, nil
}

func (g *guardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Do(func() error {
		return g.store.Set(ctx, key, value, ttl)
	})
}

// FlushByPattern bypasses the breaker.
func (g *guardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return g.store.FlushByPattern(ctx, pattern)
}

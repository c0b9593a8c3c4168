package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
)

type fakeRebuilder struct {
	current  *indexer.Snapshot
	err      error
	rebuilds int
}

func (f *fakeRebuilder) Current() *indexer.Snapshot { return f.current }

func (f *fakeRebuilder) Rebuild(context.Context) (*indexer.Snapshot, error) {
	f.rebuilds++
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now()
	f.current = &indexer.Snapshot{Version: uint64(f.rebuilds), LoadedAt: now, BuiltAt: now}
	return f.current, nil
}

// slowSource keeps loading for a while after it has read the catalog, the
// way a large query does.
type slowSource struct {
	mu     sync.Mutex
	titles []index.Title
	readAt time.Time
	calls  int
}

func (s *slowSource) Titles(context.Context) ([]index.Title, error) {
	s.mu.Lock()
	titles := s.titles
	s.readAt = time.Now()
	s.calls++
	s.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	return titles, nil
}

func (s *slowSource) Name() string { return "slow" }

func (s *slowSource) set(titles []index.Title) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = titles
}

func (s *slowSource) lastRead() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAt, s.calls
}

func encode(t *testing.T, event CatalogChangedEvent) []byte {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return b
}

func TestHandleMessageRebuilds(t *testing.T) {
	r := &fakeRebuilder{}
	h := HandleMessage(r)

	err := h(context.Background(), []byte("42"), encode(t, CatalogChangedEvent{
		Entity: "game", Action: "update", ID: "42", ChangedAt: time.Now(),
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, r.rebuilds)
}

func TestHandleMessageSkips(t *testing.T) {
	built := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	r := &fakeRebuilder{current: &indexer.Snapshot{Version: 3, LoadedAt: built, BuiltAt: built.Add(time.Second)}}
	h := HandleMessage(r)
	ctx := context.Background()

	require.NoError(t, h(ctx, nil, []byte("{not json")))
	require.NoError(t, h(ctx, nil, encode(t, CatalogChangedEvent{Entity: "publisher", Action: "create", ChangedAt: built.Add(time.Hour)})))
	require.NoError(t, h(ctx, nil, encode(t, CatalogChangedEvent{Entity: "game", Action: "delete", ChangedAt: built.Add(-time.Minute)})))
	assert.Zero(t, r.rebuilds)

	require.NoError(t, h(ctx, nil, encode(t, CatalogChangedEvent{Entity: "Game", Action: "create", ChangedAt: built.Add(time.Minute)})))
	assert.Equal(t, 1, r.rebuilds)
}

func TestHandleMessageErrors(t *testing.T) {
	ctx := context.Background()
	event := CatalogChangedEvent{Entity: "game", Action: "create", ID: "7"}

	dup := &fakeRebuilder{err: &index.DuplicateIDError{ID: "7"}}
	assert.NoError(t, HandleMessage(dup)(ctx, nil, encode(t, event)))

	boom := errors.New("db down")
	failing := &fakeRebuilder{err: boom}
	err := HandleMessage(failing)(ctx, nil, encode(t, event))
	assert.ErrorIs(t, err, boom)
}

func TestHandleMessageRebuildsForChangeCommittedDuringLoad(t *testing.T) {
	ctx := context.Background()
	src := &slowSource{titles: []index.Title{{ID: "1", Name: "Elden Ring"}}}
	e := indexer.NewEngine(src)
	_, err := e.Rebuild(ctx)
	require.NoError(t, err)

	// The write lands after the catalog was read but before the snapshot
	// finished building.
	readAt, _ := src.lastRead()
	changedAt := readAt.Add(10 * time.Millisecond)
	require.True(t, changedAt.Before(e.Current().BuiltAt))
	src.set([]index.Title{{ID: "1", Name: "Elden Ring"}, {ID: "2", Name: "Hollow Knight"}})

	err = HandleMessage(e)(ctx, []byte("2"), encode(t, CatalogChangedEvent{
		Entity: "game", Action: "create", ID: "2", ChangedAt: changedAt,
	}))
	require.NoError(t, err)

	_, calls := src.lastRead()
	assert.Equal(t, 2, calls)
	_, ok := e.Current().Index.Lookup("2")
	assert.True(t, ok)
}

// Package catalog loads the game titles that make up a search snapshot.
package catalog

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
)

// Source yields the full title list for one rebuild. Implementations must be
// safe to call repeatedly; each call reflects the catalog at that moment.
type Source interface {
	Titles(ctx context.Context) ([]index.Title, error)
	Name() string
}

// StaticSource serves a fixed list.
type StaticSource []index.Title

func (s StaticSource) Titles(context.Context) ([]index.Title, error) {
	out := make([]index.Title, len(s))
	copy(out, s)
	return out, nil
}

func (StaticSource) Name() string { return "static" }

// keep reports whether a row carries a searchable name.
func keep(name string) bool {
	return strings.TrimSpace(name) != ""
}

// Package consumer turns catalog change events from Kafka into index
// rebuilds.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/kafka"
)

// CatalogChangedEvent is emitted by the catalog service after each write.
type CatalogChangedEvent struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	ID        string    `json:"id"`
	ChangedAt time.Time `json:"changed_at"`
}

// Rebuilder is the part of indexer.Engine the consumer drives.
type Rebuilder interface {
	Current() *indexer.Snapshot
	Rebuild(ctx context.Context) (*indexer.Snapshot, error)
}

// HandleMessage returns a Kafka MessageHandler that rebuilds the index for
// every game change. Events already reflected in the active snapshot (changed
// before its catalog read started) are skipped, which collapses bursts of writes into
// one rebuild. Malformed events and catalogs with duplicate ids are logged
// and committed; other rebuild failures are returned so the message is not
// committed.
func HandleMessage(r Rebuilder) kafka.MessageHandler {
	logger := slog.Default().With("component", "catalog-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[CatalogChangedEvent](value)
		if err != nil {
			logger.Error("failed to decode catalog event", "error", err, "key", string(key))
			return nil
		}
		if !strings.EqualFold(event.Entity, "game") {
			logger.Debug("ignoring non-game catalog event", "entity", event.Entity)
			return nil
		}
		if snap := r.Current(); snap != nil && !event.ChangedAt.IsZero() && event.ChangedAt.Before(snap.LoadedAt) {
			logger.Debug("catalog change already indexed",
				"id", event.ID,
				"changed_at", event.ChangedAt,
				"version", snap.Version,
			)
			return nil
		}

		snap, err := r.Rebuild(ctx)
		if err != nil {
			if errors.Is(err, apperrors.ErrDuplicateID) {
				logger.Error("catalog change produced an invalid catalog", "id", event.ID, "error", err)
				return nil
			}
			return fmt.Errorf("rebuilding after %s of game %s: %w", event.Action, event.ID, err)
		}
		logger.Info("index rebuilt for catalog change",
			"action", event.Action,
			"id", event.ID,
			"version", snap.Version,
		)
		return nil
	}
}

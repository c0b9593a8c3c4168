package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/postgres"
)

// DefaultQuery selects every game. Any query returning (id, name) text
// columns works.
const DefaultQuery = "SELECT id::text, name FROM games ORDER BY id"

// PostgresSource reads titles from the catalog database.
type PostgresSource struct {
	client *postgres.Client
	query  string
	logger *slog.Logger
}

func NewPostgresSource(client *postgres.Client, query string) *PostgresSource {
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}
	return &PostgresSource{
		client: client,
		query:  query,
		logger: slog.Default().With("component", "catalog-postgres"),
	}
}

func (s *PostgresSource) Name() string { return "postgres" }

// Titles runs the query in a read-only snapshot transaction. Rows with a
// NULL or blank name are skipped.
func (s *PostgresSource) Titles(ctx context.Context) ([]index.Title, error) {
	var titles []index.Title
	skipped := 0
	err := s.client.ReadSnapshot(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.query)
		if err != nil {
			return fmt.Errorf("querying titles: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var name sql.NullString
			if err := rows.Scan(&id, &name); err != nil {
				return fmt.Errorf("scanning title row: %w", err)
			}
			if !name.Valid || !keep(name.String) {
				skipped++
				continue
			}
			titles = append(titles, index.Title{ID: id, Name: name.String})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Warn("skipped titles without a name", "count", skipped)
	}
	s.logger.Debug("titles loaded", "count", len(titles))
	return titles, nil
}

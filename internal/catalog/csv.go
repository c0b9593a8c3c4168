package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
)

// CSVSource reads titles from a CSV file with an "id,name" header. The file
// is re-read on every call so edits are picked up by the next rebuild.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) Titles(ctx context.Context) ([]index.Title, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog csv: %w", err)
	}
	defer func(c io.Closer) {
		_ = c.Close()
	}(f)
	return ReadCSV(f)
}

// ReadCSV decodes "id,name" rows. Rows with a blank name are skipped; a blank
// id is an error.
func ReadCSV(r io.Reader) ([]index.Title, error) {
	rows := make([]index.Title, 0)
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("decoding catalog csv: %w", err)
	}
	titles := rows[:0]
	for i, row := range rows {
		if !keep(row.Name) {
			continue
		}
		if row.ID == "" {
			// +2: header line and 1-based numbering.
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "catalog csv line %d: empty id", i+2)
		}
		titles = append(titles, row)
	}
	return titles, nil
}

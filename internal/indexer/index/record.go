package index

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
)

// Title is one searchable catalog entry as supplied by the catalog source.
type Title struct {
	ID   string `json:"id" csv:"id"`
	Name string `json:"name" csv:"name"`
}

// TitleRecord is the normalized form of a Title inside one snapshot. Records
// are shared between concurrent searches and must not be modified.
type TitleRecord struct {
	ID              string
	RawName         string
	NormalizedName  string
	NormalizedWords []string
}

// DuplicateIDError is returned by Build when two titles share an id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate title id %q", e.ID)
}

func (e *DuplicateIDError) Unwrap() error {
	return apperrors.ErrDuplicateID
}

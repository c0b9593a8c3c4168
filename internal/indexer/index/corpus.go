package index

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/normalizer"
)

// CorpusIndex is an immutable snapshot of the catalog titles. It is built
// once and then only read, so any number of goroutines may query it without
// locking.
type CorpusIndex struct {
	records    []TitleRecord
	positions  map[string]int
	byName     []int
	words      map[string][]int
	normalizer *normalizer.Normalizer
}

// Build indexes titles with the default normalizer.
func Build(titles []Title) (*CorpusIndex, error) {
	return BuildWith(normalizer.Default(), titles)
}

// BuildWith indexes titles using n. The input slice is not modified. A
// repeated id fails the whole build with a *DuplicateIDError.
func BuildWith(n *normalizer.Normalizer, titles []Title) (*CorpusIndex, error) {
	if n == nil {
		n = normalizer.Default()
	}
	idx := &CorpusIndex{
		records:    make([]TitleRecord, 0, len(titles)),
		positions:  make(map[string]int, len(titles)),
		words:      make(map[string][]int),
		normalizer: n,
	}

	for _, t := range titles {
		if _, exists := idx.positions[t.ID]; exists {
			return nil, &DuplicateIDError{ID: t.ID}
		}
		name, words := n.Normalize(t.Name)
		pos := len(idx.records)
		idx.positions[t.ID] = pos
		idx.records = append(idx.records, TitleRecord{
			ID:              t.ID,
			RawName:         t.Name,
			NormalizedName:  name,
			NormalizedWords: words,
		})

		seen := make(map[string]struct{}, len(words))
		for _, w := range words {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			idx.words[w] = append(idx.words[w], pos)
		}
	}

	idx.byName = make([]int, len(idx.records))
	for i := range idx.byName {
		idx.byName[i] = i
	}
	sort.Slice(idx.byName, func(i, j int) bool {
		a, b := idx.records[idx.byName[i]], idx.records[idx.byName[j]]
		if a.NormalizedName != b.NormalizedName {
			return a.NormalizedName < b.NormalizedName
		}
		return a.ID < b.ID
	})
	for _, postings := range idx.words {
		sort.Slice(postings, func(i, j int) bool {
			return idx.records[postings[i]].ID < idx.records[postings[j]].ID
		})
	}
	return idx, nil
}

// Len returns the number of titles in the snapshot.
func (c *CorpusIndex) Len() int {
	return len(c.records)
}

// Titles returns the records in the order they were supplied to Build.
func (c *CorpusIndex) Titles() []TitleRecord {
	out := make([]TitleRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Lookup returns the record for id.
func (c *CorpusIndex) Lookup(id string) (TitleRecord, bool) {
	pos, ok := c.positions[id]
	if !ok {
		return TitleRecord{}, false
	}
	return c.records[pos], true
}

// StartingWith returns the ids of all titles whose normalized name starts
// with prefix, in normalized-name order. It binary-searches the sorted name
// list and then walks only the matching range.
func (c *CorpusIndex) StartingWith(prefix string) []string {
	start := sort.Search(len(c.byName), func(i int) bool {
		return c.records[c.byName[i]].NormalizedName >= prefix
	})
	var ids []string
	for i := start; i < len(c.byName); i++ {
		rec := c.records[c.byName[i]]
		if !strings.HasPrefix(rec.NormalizedName, prefix) {
			break
		}
		ids = append(ids, rec.ID)
	}
	return ids
}

// ContainingWord returns the ids of titles that have word among their
// normalized words, ordered by id. Each id appears once.
func (c *CorpusIndex) ContainingWord(word string) []string {
	postings := c.words[word]
	if len(postings) == 0 {
		return nil
	}
	ids := make([]string, len(postings))
	for i, pos := range postings {
		ids[i] = c.records[pos].ID
	}
	return ids
}

// Normalizer returns the normalizer the snapshot was built with. Queries
// against the snapshot must be normalized with the same one.
func (c *CorpusIndex) Normalizer() *normalizer.Normalizer {
	return c.normalizer
}

package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/matcher"
)

// NameLen reports the normalized name length used as a tie-break.
type NameLen func(titleID string) int

// Merge combines the output of several stages into at most limit results.
// Each title id survives once: the highest score wins, and on equal scores
// the lowest stage. Results are ordered by score descending, stage
// ascending, shorter name, then id.
func Merge(limit int, nameLen NameLen, stages ...[]matcher.MatchResult) []matcher.MatchResult {
	if limit <= 0 {
		return []matcher.MatchResult{}
	}
	best := make(map[string]matcher.MatchResult)
	order := make([]string, 0)
	for _, results := range stages {
		for _, r := range results {
			cur, ok := best[r.TitleID]
			if !ok {
				order = append(order, r.TitleID)
				best[r.TitleID] = r
				continue
			}
			if r.Score > cur.Score || (r.Score == cur.Score && r.Stage < cur.Stage) {
				best[r.TitleID] = r
			}
		}
	}

	if nameLen == nil {
		nameLen = func(string) int { return 0 }
	}
	h := &resultHeap{}
	heap.Init(h)
	for _, id := range order {
		heap.Push(h, entry{result: best[id], nameLen: nameLen(id)})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	out := make([]matcher.MatchResult, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(entry).result
	}
	return out
}

type entry struct {
	result  matcher.MatchResult
	nameLen int
}

// ranksBefore reports whether a is ordered ahead of b in the final list.
func ranksBefore(a, b entry) bool {
	if a.result.Score != b.result.Score {
		return a.result.Score > b.result.Score
	}
	if a.result.Stage != b.result.Stage {
		return a.result.Stage < b.result.Stage
	}
	if a.nameLen != b.nameLen {
		return a.nameLen < b.nameLen
	}
	return a.result.TitleID < b.result.TitleID
}

// resultHeap keeps the worst-ranked entry on top so it can be evicted.
type resultHeap []entry

func (h resultHeap) Len() int { return len(h) }

func (h resultHeap) Less(i, j int) bool {
	return ranksBefore(h[j], h[i])
}

func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x interface{}) {
	*h = append(*h, x.(entry))
}

func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

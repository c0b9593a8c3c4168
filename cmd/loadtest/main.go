// Command loadtest replays autocomplete traffic against a running search
// service. Each worker "types" catalog titles one keystroke at a time, the
// way a search box issues requests, and mixes in misspelled variants.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/catalog"
)

type report struct {
	mu         sync.Mutex
	latencies  []time.Duration
	status     map[int]int
	zeroResult int
	failures   int
}

func (r *report) record(d time.Duration, status, results int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failures++
		return
	}
	r.latencies = append(r.latencies, d)
	r.status[status]++
	if status == http.StatusOK && results == 0 {
		r.zeroResult++
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	csvPath := flag.String("catalog", "data/games.csv", "catalog csv used to derive queries")
	concurrency := flag.Int("concurrency", 10, "number of simulated users")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	typoRate := flag.Float64("typos", 0.2, "fraction of titles typed with one swapped letter pair")
	flag.Parse()

	titles, err := catalog.NewCSVSource(*csvPath).Titles(context.Background())
	if err != nil || len(titles) == 0 {
		fmt.Fprintf(os.Stderr, "loading queries from %s: %v\n", *csvPath, err)
		os.Exit(1)
	}
	names := make([]string, len(titles))
	for i, t := range titles {
		names[i] = t.Name
	}

	fmt.Printf("target=%s users=%d duration=%s titles=%d\n", *baseURL, *concurrency, *duration, len(names))

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{MaxIdleConnsPerHost: *concurrency * 2},
	}
	rep := &report{status: make(map[int]int)}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < *concurrency; w++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(w), uint64(time.Now().UnixNano())))
			for ctx.Err() == nil {
				name := names[rng.IntN(len(names))]
				if rng.Float64() < *typoRate {
					name = swapPair(name, rng)
				}
				for _, prefix := range keystrokes(name) {
					if ctx.Err() != nil {
						return nil
					}
					d, status, results, err := search(ctx, client, *baseURL, prefix)
					if ctx.Err() != nil {
						return nil
					}
					rep.record(d, status, results, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	rep.print(*duration)
}

// keystrokes returns every prefix of name from two characters up.
func keystrokes(name string) []string {
	runes := []rune(name)
	var out []string
	for i := 2; i <= len(runes); i++ {
		out = append(out, string(runes[:i]))
	}
	return out
}

func swapPair(name string, rng *rand.Rand) string {
	runes := []rune(name)
	if len(runes) < 3 {
		return name
	}
	i := 1 + rng.IntN(len(runes)-2)
	runes[i], runes[i+1] = runes[i+1], runes[i]
	return string(runes)
}

func search(ctx context.Context, client *http.Client, baseURL, q string) (time.Duration, int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+"/api/v1/search?limit=10&q="+url.QueryEscape(q), nil)
	if err != nil {
		return 0, 0, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, 0, err
	}
	defer resp.Body.Close()
	var body struct {
		Results []json.RawMessage `json:"results"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return time.Since(start), resp.StatusCode, len(body.Results), nil
}

func (r *report) print(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := len(r.latencies) + r.failures
	fmt.Printf("requests=%d rps=%.1f failures=%d zero_result=%d\n",
		total, float64(total)/duration.Seconds(), r.failures, r.zeroResult)
	if len(r.latencies) == 0 {
		fmt.Println("no requests completed; is the service running?")
		os.Exit(1)
	}
	slices.Sort(r.latencies)
	for _, p := range []int{50, 90, 99} {
		fmt.Printf("p%d=%s ", p, r.latencies[(len(r.latencies)-1)*p/100])
	}
	fmt.Printf("max=%s\n", r.latencies[len(r.latencies)-1])
	codes := make([]int, 0, len(r.status))
	for code := range r.status {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, r.status[code])
	}
}

// Package search queries web and feed sources for educational content and
// normalizes the answers into one Result shape.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Result is one hit from any source.
type Result struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
	Source    string    `json:"source"`
	Published time.Time `json:"published,omitempty"`
}

// Searcher is a search backend. Name doubles as its rate limiter service.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

type CollectResult struct {
	Results []Result
	Errors  []error
}

// CollectAll queries every searcher concurrently. Results keep the order of
// searchers; one failing source does not affect the others.
func CollectAll(ctx context.Context, searchers []Searcher, query string, limit int) CollectResult {
	var (
		wg       sync.WaitGroup
		perSrc   = make([][]Result, len(searchers))
		errsByID = make([]error, len(searchers))
	)

	for i, s := range searchers {
		wg.Add(1)
		go func(i int, s Searcher) {
			defer wg.Done()
			results, err := s.Search(ctx, query, limit)
			if err != nil {
				errsByID[i] = fmt.Errorf("%s: %w", s.Name(), err)
				return
			}
			perSrc[i] = results
		}(i, s)
	}
	wg.Wait()

	var out CollectResult
	for i := range searchers {
		out.Results = append(out.Results, perSrc[i]...)
		if errsByID[i] != nil {
			out.Errors = append(out.Errors, errsByID[i])
		}
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

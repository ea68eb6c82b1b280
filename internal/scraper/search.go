package scraper

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/ScientiaCapital/claude-education-platform/internal/cache"
	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
	"github.com/ScientiaCapital/claude-education-platform/internal/retry"
	"github.com/ScientiaCapital/claude-education-platform/internal/search"
	"github.com/ScientiaCapital/claude-education-platform/internal/signal"
)

const (
	searchCacheType  = "search"
	searchSuffix     = " tutorial programming education learn"
	descriptionLimit = 200
	defaultResults   = 10
)

// Item is a scored search result.
type Item struct {
	Title          string               `json:"title"`
	URL            string               `json:"url"`
	Description    string               `json:"description"`
	Source         string               `json:"source"`
	RelevanceScore float64              `json:"relevance_score"`
	EstimatedType  classify.ContentType `json:"estimated_type"`
	Difficulty     classify.Difficulty  `json:"difficulty"`
}

// Search finds educational resources on topic across every configured
// searcher. It never fails: source errors are logged and the remaining
// results are still ranked.
func (s *Scraper) Search(ctx context.Context, topic string, maxResults int) []Item {
	return s.SearchQuery(ctx, topic+searchSuffix, maxResults, s.threshold)
}

// SearchQuery runs query verbatim and keeps results scoring above threshold.
func (s *Scraper) SearchQuery(ctx context.Context, query string, maxResults int, threshold float64) []Item {
	if maxResults <= 0 {
		maxResults = defaultResults
	}
	s.count(func(st *Stats) { st.Searches++ })

	// Searchers receive the limit, so results for one limit do not answer another.
	key := query + "|" + strconv.Itoa(maxResults)
	raw, ok := cache.GetJSON[[]search.Result](ctx, s.cache, key, searchCacheType, s.maxAge)
	if !ok {
		wrapped := make([]search.Searcher, len(s.searchers))
		for i, src := range s.searchers {
			wrapped[i] = &guarded{src: src, s: s}
		}
		collected := search.CollectAll(ctx, wrapped, query, maxResults)
		for _, err := range collected.Errors {
			s.log.Warn("educational search source failed", "query", query, "err", err)
		}
		raw = collected.Results
		// A total failure is not cached so the next call retries.
		if len(raw) > 0 || len(collected.Errors) == 0 {
			if err := cache.SetJSON(ctx, s.cache, key, searchCacheType, raw); err != nil {
				s.log.Warn("caching search results failed", "query", query, "err", err)
			}
		}
	}

	items := Rank(raw, threshold, maxResults)
	s.log.Info("educational search complete", "query", query, "found", len(items))
	return items
}

// Rank scores results, drops those at or below threshold, removes duplicate
// URLs and returns at most limit items, most relevant first.
func Rank(results []search.Result, threshold float64, limit int) []Item {
	seen := make(map[string]bool, len(results))
	var items []Item
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		score := signal.Relevance(signal.Input{Title: r.Title, Description: r.Content, URL: r.URL})
		if score <= threshold {
			continue
		}
		seen[r.URL] = true
		estimated := classify.EstimateType(r.Title, r.Content)
		if estimated == classify.General && signal.IsCodePlatform(r.URL) {
			estimated = classify.Example
		}
		items = append(items, Item{
			Title:          r.Title,
			URL:            r.URL,
			Description:    firstRunes(r.Content, descriptionLimit),
			Source:         r.Source,
			RelevanceScore: score,
			EstimatedType:  estimated,
			Difficulty:     classify.EstimateDifficulty(r.Title, r.Content),
		})
	}
	slices.SortStableFunc(items, func(a, b Item) int {
		return cmp.Compare(b.RelevanceScore, a.RelevanceScore)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func firstRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// guarded runs a searcher under the limiter and retry handler.
type guarded struct {
	src search.Searcher
	s   *Scraper
}

func (g *guarded) Name() string { return g.src.Name() }

func (g *guarded) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	return retry.Do(ctx, g.s.retry, func(ctx context.Context) ([]search.Result, error) {
		if err := g.s.acquire(ctx, g.src.Name()); err != nil {
			return nil, err
		}
		return g.src.Search(ctx, query, limit)
	})
}

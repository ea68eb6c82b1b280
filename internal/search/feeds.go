package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/ScientiaCapital/claude-education-platform/internal/config"
	"github.com/mmcdole/gofeed"
)

// Feeds searches the items of configured RSS and Atom feeds. It needs no API
// key, so it is always available.
type Feeds struct {
	feeds  []config.Feed
	parser *gofeed.Parser
}

func NewFeeds(feeds []config.Feed) *Feeds {
	return &Feeds{feeds: feeds, parser: gofeed.NewParser()}
}

func (f *Feeds) Name() string { return "feeds" }

// queryNoise are words the scraper adds to every query. Matching on them
// would select every item of an educational feed.
var queryNoise = map[string]bool{
	"tutorial": true, "programming": true, "education": true, "learn": true,
	"next": true, "steps": true, "advanced": true,
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "for": true, "with": true, "on": true,
}

func queryTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" && !queryNoise[w] {
			terms = append(terms, w)
		}
	}
	return terms
}

// Search returns feed items mentioning every significant query term, scored
// by the share of those terms found in the title.
func (f *Feeds) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		items []Result
		errs  []error
	)
	for _, feed := range f.feeds {
		wg.Add(1)
		go func(feed config.Feed) {
			defer wg.Done()
			found, err := f.searchFeed(ctx, feed, terms)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			items = append(items, found...)
		}(feed)
	}
	wg.Wait()

	if len(items) == 0 && len(errs) > 0 {
		return nil, errs[0]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *Feeds) searchFeed(ctx context.Context, feed config.Feed, terms []string) ([]Result, error) {
	parsed, err := f.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", feed.Name, err)
	}

	var out []Result
	for _, item := range parsed.Items {
		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		desc = stripHTML(desc)

		title := strings.ToLower(item.Title)
		text := title + " " + strings.ToLower(desc)
		inTitle := 0
		all := true
		for _, t := range terms {
			if !strings.Contains(text, t) {
				all = false
				break
			}
			if strings.Contains(title, t) {
				inTitle++
			}
		}
		if !all {
			continue
		}

		r := Result{
			Title:   item.Title,
			URL:     item.Link,
			Content: truncate(desc, 500),
			Score:   0.5 + 0.5*float64(inTitle)/float64(len(terms)),
			Source:  "feed:" + feed.Name,
		}
		if item.PublishedParsed != nil {
			r.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			r.Published = *item.UpdatedParsed
		}
		out = append(out, r)
	}
	return out, nil
}

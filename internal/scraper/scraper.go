// Package scraper discovers, fetches and analyses educational web content.
// Every outbound call goes through the shared rate limiter and retry
// handler, and finished scrapes are written to the tiered cache.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ScientiaCapital/claude-education-platform/internal/ai"
	"github.com/ScientiaCapital/claude-education-platform/internal/cache"
	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
	"github.com/ScientiaCapital/claude-education-platform/internal/fetch"
	"github.com/ScientiaCapital/claude-education-platform/internal/metadata"
	"github.com/ScientiaCapital/claude-education-platform/internal/metrics"
	"github.com/ScientiaCapital/claude-education-platform/internal/ratelimit"
	"github.com/ScientiaCapital/claude-education-platform/internal/retry"
	"github.com/ScientiaCapital/claude-education-platform/internal/search"
)

const (
	defaultMaxPages        = 10
	defaultMaxAge          = 24 * time.Hour
	defaultMaxContentChars = 8000
	defaultThreshold       = 0.5
)

// Options controls a single Scrape call.
type Options struct {
	ContentType classify.ContentType
	Depth       int
	MaxPages    int
}

func (o Options) normalized() Options {
	if o.ContentType == "" {
		o.ContentType = classify.Tutorial
	}
	if o.Depth < 1 {
		o.Depth = 1
	}
	if o.MaxPages < 1 {
		o.MaxPages = defaultMaxPages
	}
	return o
}

// Result is the outcome of scraping one start URL. Callers must check
// Error: a failed scrape still returns a Result.
type Result struct {
	SourceURL    string               `json:"source_url"`
	ContentType  classify.ContentType `json:"content_type"`
	PagesScraped int                  `json:"pages_scraped"`
	Content      []fetch.Page         `json:"educational_content"`
	Metadata     metadata.Metadata    `json:"metadata"`
	MetadataKind metadata.Kind        `json:"metadata_kind"`
	Cost         float64              `json:"total_cost"`
	Cached       bool                 `json:"-"`
	Error        string               `json:"error,omitempty"`
}

// Stats are the scraper's own counters.
type Stats struct {
	TotalScrapes int
	CacheHits    int
	PagesScraped int
	ContentFound int
	Coalesced    int
	Searches     int
	Errors       int
	TotalCost    float64
}

// Report combines scraper, cache, limiter and retry statistics.
type Report struct {
	Scraper Stats
	Cache   cache.Stats
	Limiter map[string]ratelimit.ServiceStats
	Retry   retry.Stats
}

// Deps are the collaborators a Scraper needs. Generator and Searchers may be
// empty: without a generator pages get default metadata, without searchers
// Search finds nothing.
type Deps struct {
	Fetcher   fetch.Fetcher
	Generator ai.Generator
	Searchers []search.Searcher
	Cache     *cache.Tiered
	Limiter   *ratelimit.Limiter
	Retry     *retry.Handler
}

type Option func(*Scraper)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scraper) { s.log = l }
}

// WithMaxAge sets how long a cached scrape is served.
func WithMaxAge(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithMaxContentChars sets the analysis truncation limit.
func WithMaxContentChars(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxContent = n
		}
	}
}

// WithRelevanceThreshold sets the minimum score for search results.
func WithRelevanceThreshold(t float64) Option {
	return func(s *Scraper) { s.threshold = t }
}

// WithCoalescing toggles merging of concurrent scrapes of the same URL and
// content type into one fetch.
func WithCoalescing(on bool) Option {
	return func(s *Scraper) { s.coalesce = on }
}

type Scraper struct {
	fetcher   fetch.Fetcher
	gen       ai.Generator
	searchers []search.Searcher
	cache     *cache.Tiered
	limiter   *ratelimit.Limiter
	retry     *retry.Handler

	maxAge     time.Duration
	maxContent int
	threshold  float64
	coalesce   bool
	group      singleflight.Group

	log *slog.Logger

	mu    sync.Mutex
	stats Stats
}

func New(d Deps, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher:    d.Fetcher,
		gen:        d.Generator,
		searchers:  d.Searchers,
		cache:      d.Cache,
		limiter:    d.Limiter,
		retry:      d.Retry,
		maxAge:     defaultMaxAge,
		maxContent: defaultMaxContentChars,
		threshold:  defaultThreshold,
		coalesce:   true,
		log:        slog.Default(),
	}
	if s.cache == nil {
		s.cache = cache.NewTiered(nil, nil)
	}
	if s.retry == nil {
		s.retry = retry.NewHandler(3, time.Second)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches url, extracts learning metadata and, when opts.Depth > 1,
// follows related educational links up to opts.MaxPages pages in total.
// Cached results younger than the max age are returned without any fetch.
func (s *Scraper) Scrape(ctx context.Context, url string, opts Options) Result {
	opts = opts.normalized()
	cacheType := string(opts.ContentType)

	if cached, ok := cache.GetJSON[Result](ctx, s.cache, url, cacheType, s.maxAge); ok {
		s.count(func(st *Stats) { st.CacheHits++ })
		s.log.Info("using cached educational content", "url", url)
		cached.Cached = true
		return cached
	}

	if !s.coalesce {
		return s.scrape(ctx, url, opts)
	}
	// The shared scrape must not end with whichever caller started it; each
	// caller stops waiting on its own context instead.
	ch := s.group.DoChan(cacheType+"|"+url, func() (any, error) {
		return s.scrape(context.WithoutCancel(ctx), url, opts), nil
	})
	select {
	case r := <-ch:
		if r.Shared {
			s.count(func(st *Stats) { st.Coalesced++ })
		}
		return r.Val.(Result)
	case <-ctx.Done():
		return Result{SourceURL: url, ContentType: opts.ContentType, Content: []fetch.Page{}, Error: ctx.Err().Error()}
	}
}

func (s *Scraper) scrape(ctx context.Context, url string, opts Options) Result {
	s.log.Info("scraping educational content", "url", url, "type", opts.ContentType, "depth", opts.Depth)
	res := Result{SourceURL: url, ContentType: opts.ContentType, Content: []fetch.Page{}}

	page, err := s.fetchPage(ctx, url, opts.ContentType)
	if err != nil {
		s.log.Error("educational scraping failed", "url", url, "err", err)
		res.Error = err.Error()
		s.count(func(st *Stats) { st.Errors++ })
		metrics.ScrapeErrors.Inc()
		return res
	}
	res.PagesScraped = 1
	res.Content = append(res.Content, *page)

	res.Metadata, res.MetadataKind, res.Cost = s.extract(ctx, page.Markdown, opts.ContentType)

	if opts.Depth > 1 && res.PagesScraped < opts.MaxPages {
		related := DiscoverRelated(page.Markdown, url)
		related = related[:min(len(related), opts.MaxPages-res.PagesScraped)]
		for _, u := range related {
			p, err := s.fetchPage(ctx, u, opts.ContentType)
			if err != nil {
				s.log.Warn("failed to scrape related url", "url", u, "err", err)
				continue
			}
			res.Content = append(res.Content, *p)
			res.PagesScraped++
		}
	}

	if err := cache.SetJSON(ctx, s.cache, url, string(opts.ContentType), res); err != nil {
		s.log.Warn("caching scrape result failed", "url", url, "err", err)
	}

	s.count(func(st *Stats) {
		st.TotalScrapes++
		st.PagesScraped += res.PagesScraped
		st.ContentFound += len(res.Content)
		st.TotalCost += res.Cost
	})
	metrics.PagesScraped.Add(float64(res.PagesScraped))
	s.log.Info("educational scraping complete", "url", url, "pages", res.PagesScraped, "metadata", res.MetadataKind)
	return res
}

func (s *Scraper) fetchPage(ctx context.Context, url string, ct classify.ContentType) (*fetch.Page, error) {
	if s.fetcher == nil {
		return nil, errors.New("no page fetcher configured")
	}
	req := fetch.RequestFor(url, string(ct))
	return retry.Do(ctx, s.retry, func(ctx context.Context) (*fetch.Page, error) {
		if err := s.acquire(ctx, s.fetcher.Name()); err != nil {
			return nil, err
		}
		return s.fetcher.Fetch(ctx, req)
	})
}

// extract never fails: any generation error yields default metadata.
func (s *Scraper) extract(ctx context.Context, markdown string, ct classify.ContentType) (metadata.Metadata, metadata.Kind, float64) {
	if s.gen == nil {
		return metadata.Default(), metadata.Empty, 0
	}
	prompt := metadata.Prompt(metadata.Truncate(markdown, s.maxContent), string(ct))
	answer, err := retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		if err := s.acquire(ctx, s.gen.Name()); err != nil {
			return "", err
		}
		return s.gen.Generate(ctx, prompt)
	})
	if err != nil {
		s.log.Warn("educational analysis failed", "err", err)
		return metadata.Default(), metadata.Empty, 0
	}

	cost := ai.Cost(prompt, answer)
	metrics.GenerationCost.Add(cost)
	m, kind := metadata.Parse(answer)
	return m, kind, cost
}

// acquire waits for quota. Services without a configured quota are not limited.
func (s *Scraper) acquire(ctx context.Context, service string) error {
	if s.limiter == nil {
		return nil
	}
	_, err := s.limiter.Acquire(ctx, service)
	if errors.Is(err, ratelimit.ErrUnknownService) {
		s.log.Debug("no quota configured", "service", service)
		return nil
	}
	return err
}

func (s *Scraper) count(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

// Report returns a snapshot of all statistics.
func (s *Scraper) Report() Report {
	s.mu.Lock()
	st := s.stats
	s.mu.Unlock()
	r := Report{Scraper: st, Cache: s.cache.Stats(), Retry: s.retry.Stats()}
	if s.limiter != nil {
		r.Limiter = s.limiter.Stats()
	}
	return r
}

// Cache exposes the tiered cache for maintenance commands.
func (s *Scraper) Cache() *cache.Tiered { return s.cache }

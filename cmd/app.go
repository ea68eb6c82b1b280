package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ScientiaCapital/claude-education-platform/internal/ai"
	"github.com/ScientiaCapital/claude-education-platform/internal/cache"
	"github.com/ScientiaCapital/claude-education-platform/internal/config"
	"github.com/ScientiaCapital/claude-education-platform/internal/enrich"
	"github.com/ScientiaCapital/claude-education-platform/internal/fetch"
	"github.com/ScientiaCapital/claude-education-platform/internal/kb"
	"github.com/ScientiaCapital/claude-education-platform/internal/ratelimit"
	"github.com/ScientiaCapital/claude-education-platform/internal/retry"
	"github.com/ScientiaCapital/claude-education-platform/internal/scraper"
	"github.com/ScientiaCapital/claude-education-platform/internal/search"
)

// politeInterval spaces direct HTTP fetches to the same host.
const politeInterval = time.Second

// app holds everything a command needs. db is nil when the SQLite cache
// could not be opened; the memory and file tiers keep working.
type app struct {
	cfg       *config.Config
	db        *cache.Store
	limiter   *ratelimit.Limiter
	retry     *retry.Handler
	generator ai.Generator
	scraper   *scraper.Scraper
	enricher  *enrich.Enricher
}

func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log := slog.Default()

	a := &app{cfg: cfg}

	var durable cache.Durable
	if db, err := cache.Open(config.CachePath()); err != nil {
		log.Warn("durable cache unavailable", "err", err)
	} else {
		a.db = db
		durable = db
	}

	var files *cache.Files
	if f, err := cache.NewFiles(cfg.FileCacheDir()); err != nil {
		log.Warn("file cache unavailable", "err", err)
	} else {
		files = f
	}
	tiered := cache.NewTiered(durable, files, cache.WithLogger(log), cache.WithDurableTTL(cfg.DurableTTL()))

	a.limiter = ratelimit.New(quotas(cfg), ratelimit.WithLogger(log))
	a.retry = retry.NewHandler(cfg.Retry.MaxRetries, cfg.RetryBaseDelay()).WithLogger(log)
	a.retry.RetryOn = cfg.Retry.RetryOn

	if cfg.AIEnabled() {
		g, err := ai.New(cfg.AI, cfg.AIKey())
		if err != nil {
			return nil, fmt.Errorf("configuring AI provider: %w", err)
		}
		a.generator = g
	}

	deps := scraper.Deps{
		Fetcher:   newFetcher(cfg),
		Searchers: newSearchers(cfg),
		Cache:     tiered,
		Limiter:   a.limiter,
		Retry:     a.retry,
	}
	if a.generator != nil {
		deps.Generator = a.generator
	}
	a.scraper = scraper.New(deps,
		scraper.WithLogger(log),
		scraper.WithMaxAge(cfg.MaxAge()),
		scraper.WithMaxContentChars(cfg.Scraper.MaxContentChars),
		scraper.WithRelevanceThreshold(cfg.Scraper.RelevanceThreshold),
		scraper.WithCoalescing(cfg.Scraper.Coalesce),
	)

	enrichOpts := []enrich.Option{
		enrich.WithLogger(log),
		enrich.WithConcurrency(cfg.GetConcurrency()),
	}
	if t := cfg.Scraper.SuggestionThreshold; t > 0 {
		enrichOpts = append(enrichOpts, enrich.WithSuggestionThreshold(t))
	}
	if a.db != nil {
		a.enricher = enrich.New(a.scraper, a.db, enrichOpts...)
	} else {
		a.enricher = enrich.New(a.scraper, nil, enrichOpts...)
	}
	return a, nil
}

// knowledgeBase opens the knowledge base over the SQLite store.
func (a *app) knowledgeBase(ctx context.Context) (*kb.KnowledgeBase, error) {
	if a.db == nil {
		return nil, fmt.Errorf("the knowledge base needs the SQLite cache at %s", config.CachePath())
	}
	c := a.cfg.KnowledgeBase
	opts := []kb.Option{
		kb.WithLogger(slog.Default()),
		kb.WithChunking(c.ChunkSize, c.ChunkOverlap),
		kb.WithTopK(c.TopK),
	}
	if a.generator != nil {
		opts = append(opts, kb.WithGenerator(a.generator, a.limiter, a.retry))
	}
	return kb.Open(ctx, a.db, opts...)
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func quotas(cfg *config.Config) map[string]ratelimit.Quota {
	if len(cfg.RateLimits) == 0 {
		return ratelimit.DefaultQuotas()
	}
	out := make(map[string]ratelimit.Quota, len(cfg.RateLimits))
	for name, q := range cfg.RateLimits {
		out[name] = ratelimit.Quota{Burst: q.BurstLimit, PerMinute: q.RequestsPerMinute, PerHour: q.RequestsPerHour}
	}
	return out
}

// newFetcher prefers Firecrawl and falls back to fetching HTML directly.
func newFetcher(cfg *config.Config) fetch.Fetcher {
	if key := cfg.FirecrawlKey(); cfg.Firecrawl.Enabled && key != "" {
		return fetch.NewFirecrawl(key)
	}
	return fetch.NewHTTP(politeInterval)
}

func newSearchers(cfg *config.Config) []search.Searcher {
	var out []search.Searcher
	if key := cfg.TavilyKey(); key != "" {
		out = append(out, search.NewTavily(key))
	}
	if key := cfg.ExaKey(); key != "" {
		out = append(out, search.NewExa(key))
	}
	if feeds := cfg.EnabledFeeds(); len(feeds) > 0 {
		out = append(out, search.NewFeeds(feeds))
	}
	return out
}

package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edututor_cache_lookups_total",
			Help: "Cache lookups by tier and outcome (hit, stale, error, miss)",
		},
		[]string{"tier", "result"},
	)

	CacheSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edututor_cache_saves_total",
			Help: "Cache writes by tier and outcome",
		},
		[]string{"tier", "result"},
	)

	RateLimitAcquires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edututor_ratelimit_acquires_total",
			Help: "Rate limiter acquisitions by service and whether the caller had to wait",
		},
		[]string{"service", "limited"},
	)

	RateLimitWait = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edututor_ratelimit_wait_seconds_total",
			Help: "Total time spent waiting on the rate limiter",
		},
		[]string{"service"},
	)

	RetryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edututor_retry_outcomes_total",
			Help: "Retried operation outcomes (immediate, after_retry, failed, fatal)",
		},
		[]string{"outcome"},
	)

	PagesScraped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edututor_pages_scraped_total",
		Help: "Pages fetched by the educational scraper",
	})

	ScrapeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edututor_scrape_errors_total",
		Help: "Scrape requests that ended with an error result",
	})

	GenerationCost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edututor_generation_cost_dollars_total",
		Help: "Estimated spend on metadata extraction",
	})
)

// Serve exposes /metrics on addr in the background.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server stopped", "err", err)
		}
	}()
}

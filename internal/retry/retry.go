// Package retry runs operations with bounded exponential backoff. Whether an
// error is worth retrying is decided by matching marker substrings against
// its text, so it works the same for HTTP status errors and network errors.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/ScientiaCapital/claude-education-platform/internal/metrics"
)

// DefaultRetryOn are the error markers retried when the caller passes none.
var DefaultRetryOn = []string{"rate limit", "429", "503", "502", "timeout", "connection"}

const (
	maxDelay          = 60 * time.Second
	maxRateLimitDelay = 120 * time.Second
	minDelay          = 100 * time.Millisecond
)

type Stats struct {
	TotalAttempts      int
	ImmediateSuccesses int
	SuccessfulRetries  int
	FailedAfterRetries int
}

// SuccessRate is the share of finished operations that eventually succeeded.
func (s Stats) SuccessRate() float64 {
	done := s.ImmediateSuccesses + s.SuccessfulRetries + s.FailedAfterRetries
	if done == 0 {
		return 0
	}
	return float64(s.ImmediateSuccesses+s.SuccessfulRetries) / float64(done)
}

// Handler holds the retry policy and its counters. It is safe for concurrent use.
type Handler struct {
	MaxRetries int
	BaseDelay  time.Duration

	// RetryOn replaces DefaultRetryOn for calls to Do that pass no markers.
	RetryOn []string

	mu    sync.Mutex
	stats Stats

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64 // uniform in [0, 1)
	log    *slog.Logger
}

func NewHandler(maxRetries int, baseDelay time.Duration) *Handler {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Handler{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		sleep:      sleepContext,
		jitter:     rand.Float64,
		log:        slog.Default(),
	}
}

// WithLogger returns h after replacing its logger.
func (h *Handler) WithLogger(l *slog.Logger) *Handler {
	h.log = l
	return h
}

// IsRetryable reports whether err's text contains any marker, case-insensitively.
// Context cancellation is never retryable.
func IsRetryable(err error, markers ...string) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if len(markers) == 0 {
		markers = DefaultRetryOn
	}
	msg := strings.ToLower(err.Error())
	for _, m := range markers {
		if strings.Contains(msg, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Backoff is the delay before retry number attempt+1, without jitter.
func (h *Handler) Backoff(attempt int, err error) time.Duration {
	d := min(h.BaseDelay, maxDelay)
	for i := 0; i < attempt && d < maxDelay; i++ {
		d = min(2*d, maxDelay)
	}
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
			d = min(2*d, maxRateLimitDelay)
		}
	}
	return d
}

func (h *Handler) delay(attempt int, err error) time.Duration {
	d := h.Backoff(attempt, err)
	// ±25%
	j := time.Duration(float64(d) * 0.25 * (2*h.jitter() - 1))
	return max(minDelay, d+j)
}

// Stats returns a snapshot of the counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handler) count(f func(*Stats)) {
	h.mu.Lock()
	f(&h.stats)
	h.mu.Unlock()
}

// Do calls op until it succeeds, fails with an error that matches none of
// retryOn (h.RetryOn, then DefaultRetryOn, when empty), or h.MaxRetries retries are used up.
// The last error is returned unchanged.
func Do[T any](ctx context.Context, h *Handler, op func(context.Context) (T, error), retryOn ...string) (T, error) {
	var zero T
	var lastErr error
	if len(retryOn) == 0 {
		retryOn = h.RetryOn
	}
	for attempt := 0; attempt <= h.MaxRetries; attempt++ {
		h.count(func(s *Stats) { s.TotalAttempts++ })

		v, err := op(ctx)
		if err == nil {
			if attempt == 0 {
				h.count(func(s *Stats) { s.ImmediateSuccesses++ })
				metrics.RetryOutcomes.WithLabelValues("immediate").Inc()
			} else {
				h.count(func(s *Stats) { s.SuccessfulRetries++ })
				metrics.RetryOutcomes.WithLabelValues("after_retry").Inc()
				h.log.Info("succeeded after retries", "retries", attempt)
			}
			return v, nil
		}
		lastErr = err

		if !IsRetryable(err, retryOn...) {
			metrics.RetryOutcomes.WithLabelValues("fatal").Inc()
			return zero, err
		}
		if attempt >= h.MaxRetries {
			break
		}

		d := h.delay(attempt, err)
		h.log.Warn("attempt failed, retrying", "attempt", attempt+1, "err", err, "delay", d.Round(100*time.Millisecond))
		if serr := h.sleep(ctx, d); serr != nil {
			return zero, lastErr
		}
	}

	h.count(func(s *Stats) { s.FailedAfterRetries++ })
	metrics.RetryOutcomes.WithLabelValues("failed").Inc()
	h.log.Error("all retries failed", "retries", h.MaxRetries, "err", lastErr)
	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

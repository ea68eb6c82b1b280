// Package ratelimit enforces per-service request quotas over three sliding
// windows: a 10 second burst window, a minute and an hour.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ScientiaCapital/claude-education-platform/internal/metrics"
)

// ErrUnknownService is returned for a service without a configured quota.
var ErrUnknownService = errors.New("ratelimit: unknown service")

const (
	burstWindow  = 10 * time.Second
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// Quota holds the per-window request limits of one service. A limit of zero
// disables that window.
type Quota struct {
	Burst     int
	PerMinute int
	PerHour   int
}

// DefaultQuotas returns the limits used when nothing is configured.
func DefaultQuotas() map[string]Quota {
	return map[string]Quota{
		"firecrawl": {Burst: 5, PerMinute: 30, PerHour: 1000},
		"anthropic": {Burst: 10, PerMinute: 50, PerHour: 5000},
	}
}

type window struct {
	span  time.Duration
	limit int
	times []time.Time
}

func (w *window) purge(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.times) && w.times[i].Before(cutoff) {
		i++
	}
	w.times = w.times[i:]
}

// wait returns how long until one more request fits in the window.
func (w *window) wait(now time.Time) time.Duration {
	if w.limit <= 0 || len(w.times) < w.limit {
		return 0
	}
	binding := w.times[len(w.times)-w.limit]
	d := w.span - now.Sub(binding)
	if d < 0 {
		return 0
	}
	return d
}

type service struct {
	windows [3]*window
	stats   ServiceStats
}

func newService(q Quota) *service {
	return &service{windows: [3]*window{
		{span: burstWindow, limit: q.Burst},
		{span: minuteWindow, limit: q.PerMinute},
		{span: hourWindow, limit: q.PerHour},
	}}
}

func (s *service) waitTime(now time.Time) time.Duration {
	var longest time.Duration
	for _, w := range s.windows {
		w.purge(now)
		if d := w.wait(now); d > longest {
			longest = d
		}
	}
	return longest
}

func (s *service) record(now time.Time) {
	for _, w := range s.windows {
		w.times = append(w.times, now)
	}
}

// ServiceStats are cumulative counters for one service.
type ServiceStats struct {
	TotalRequests int
	TotalWait     time.Duration
	RateLimited   int
}

// AvgWait is the mean wait per request.
func (s ServiceStats) AvgWait() time.Duration {
	if s.TotalRequests == 0 {
		return 0
	}
	return s.TotalWait / time.Duration(s.TotalRequests)
}

// LimitedPercent is the share of requests that had to wait, in percent.
func (s ServiceStats) LimitedPercent() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.RateLimited) / float64(s.TotalRequests) * 100
}

// WindowUsage reports how many requests a window currently holds.
type WindowUsage struct {
	Used  int
	Limit int
}

// Available is the number of requests that still fit; -1 when unlimited.
func (u WindowUsage) Available() int {
	if u.Limit <= 0 {
		return -1
	}
	return u.Limit - u.Used
}

func (u WindowUsage) String() string {
	if u.Limit <= 0 {
		return strconv.Itoa(u.Used) + "/-"
	}
	return fmt.Sprintf("%d/%d", u.Used, u.Limit)
}

// Usage is a snapshot of the three windows of one service.
type Usage struct {
	Burst  WindowUsage
	Minute WindowUsage
	Hour   WindowUsage
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger used for wait notices.
func WithLogger(l *slog.Logger) Option {
	return func(lim *Limiter) { lim.log = l }
}

// Limiter tracks request timestamps per service. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	services map[string]*service

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	log   *slog.Logger
}

// New creates a Limiter with one set of windows per configured service.
func New(quotas map[string]Quota, opts ...Option) *Limiter {
	l := &Limiter{
		services: make(map[string]*service, len(quotas)),
		now:      time.Now,
		sleep:    sleepContext,
		log:      slog.Default(),
	}
	for name, q := range quotas {
		l.services[name] = newService(q)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Services lists the configured service names.
func (l *Limiter) Services() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.services))
	for name := range l.services {
		names = append(names, name)
	}
	return names
}

// Has reports whether a quota is configured for the service.
func (l *Limiter) Has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.services[name]
	return ok
}

// Acquire blocks until a request for the service fits in all of its windows,
// then records it. It returns the total time spent waiting. The only errors
// are ErrUnknownService and a context ending while waiting.
func (l *Limiter) Acquire(ctx context.Context, name string) (time.Duration, error) {
	var waited time.Duration
	for {
		l.mu.Lock()
		svc, ok := l.services[name]
		if !ok {
			l.mu.Unlock()
			return 0, fmt.Errorf("%w: %q", ErrUnknownService, name)
		}
		now := l.now()
		wait := svc.waitTime(now)
		if wait <= 0 {
			svc.record(now)
			svc.stats.TotalRequests++
			if waited > 0 {
				svc.stats.RateLimited++
				svc.stats.TotalWait += waited
			}
			l.mu.Unlock()
			metrics.RateLimitAcquires.WithLabelValues(name, strconv.FormatBool(waited > 0)).Inc()
			return waited, nil
		}
		l.mu.Unlock()

		// Another caller may have taken the slot while we slept, so the loop
		// re-checks instead of recording straight away.
		l.log.Info("rate limiting", "service", name, "wait", wait.Round(100*time.Millisecond))
		if err := l.sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
		metrics.RateLimitWait.WithLabelValues(name).Add(wait.Seconds())
	}
}

// WaitTime returns how long Acquire would currently block for the service.
func (l *Limiter) WaitTime(name string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, ok := l.services[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	return svc.waitTime(l.now()), nil
}

// Usage reports how full each window of the service currently is.
func (l *Limiter) Usage(name string) (Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, ok := l.services[name]
	if !ok {
		return Usage{}, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	now := l.now()
	var u [3]WindowUsage
	for i, w := range svc.windows {
		w.purge(now)
		u[i] = WindowUsage{Used: len(w.times), Limit: w.limit}
	}
	return Usage{Burst: u[0], Minute: u[1], Hour: u[2]}, nil
}

// Stats returns a snapshot of the counters of every service.
func (l *Limiter) Stats() map[string]ServiceStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]ServiceStats, len(l.services))
	for name, svc := range l.services {
		out[name] = svc.stats
	}
	return out
}

// WaitForQuota polls once a second until both the minute and hour windows
// have room for n more requests. It returns the time spent waiting.
func (l *Limiter) WaitForQuota(ctx context.Context, name string, n int) (time.Duration, error) {
	if n <= 0 {
		return 0, nil
	}
	start := l.now()
	for {
		u, err := l.Usage(name)
		if err != nil {
			return 0, err
		}
		if fits(u.Minute, n) && fits(u.Hour, n) {
			break
		}
		if err := l.sleep(ctx, time.Second); err != nil {
			return l.now().Sub(start), err
		}
	}
	total := l.now().Sub(start)
	if total > time.Second {
		l.log.Info("waited for quota", "service", name, "requests", n, "wait", total.Round(100*time.Millisecond))
	}
	return total, nil
}

func fits(u WindowUsage, n int) bool {
	return u.Limit <= 0 || u.Available() >= n
}

// EstimateCompletion estimates how long the remaining requests take under
// the more restrictive of the minute and hour quotas.
func (l *Limiter) EstimateCompletion(name string, remaining int) (time.Duration, error) {
	if remaining <= 0 {
		return 0, nil
	}
	l.mu.Lock()
	svc, ok := l.services[name]
	l.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	perMinute := svc.windows[1].limit
	perHour := svc.windows[2].limit

	var minutes, hours float64
	if perMinute > 0 {
		minutes = float64(remaining) / float64(perMinute)
	}
	if perHour > 0 {
		hours = float64(remaining) / float64(perHour)
	}
	if hours*60 > minutes {
		return time.Duration(math.Round(hours * float64(time.Hour))), nil
	}
	return time.Duration(math.Round(minutes * float64(time.Minute))), nil
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

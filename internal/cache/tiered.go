package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ScientiaCapital/claude-education-platform/internal/metrics"
)

// Durable is the persistent tier behind the memory map. *Store implements it.
type Durable interface {
	SetCache(ctx context.Context, e Entry) error
	GetCache(ctx context.Context, key string) (Entry, bool, error)
	DeleteCache(ctx context.Context, key string) error
	CleanupExpiredCache(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	CountCache(ctx context.Context) (map[string]int, error)
}

const (
	tierMemory  = "memory"
	tierDurable = "durable"
	tierFile    = "file"
)

// Tiered looks entries up in memory, then the durable store, then files,
// back-filling the faster tiers on a hit. Writes go to every tier. Tier
// failures are logged and never returned, so the durable store and the file
// tier are both optional.
type Tiered struct {
	mem     *Memory
	durable Durable
	files   *Files
	ttl     time.Duration

	now func() time.Time
	log *slog.Logger

	mu     sync.Mutex
	hits   int
	misses int
	saves  int
}

type Option func(*Tiered)

func WithLogger(l *slog.Logger) Option {
	return func(t *Tiered) { t.log = l }
}

// WithDurableTTL sets the expiry written to the durable store.
func WithDurableTTL(d time.Duration) Option {
	return func(t *Tiered) {
		if d > 0 {
			t.ttl = d
		}
	}
}

// NewTiered builds the cache. durable and files may be nil.
func NewTiered(durable Durable, files *Files, opts ...Option) *Tiered {
	t := &Tiered{
		mem:     NewMemory(),
		durable: durable,
		files:   files,
		ttl:     defaultTTL,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get returns the payload cached for url and cacheType if it is younger than
// maxAge. Stale entries are deleted from the tier that held them.
func (t *Tiered) Get(ctx context.Context, url, cacheType string, maxAge time.Duration) (json.RawMessage, bool) {
	key := typedKey(url, cacheType)
	now := t.now()

	if e, ok := t.mem.Get(key); ok {
		if e.Fresh(now, maxAge) {
			t.hit(tierMemory)
			return e.Payload, true
		}
		t.mem.Delete(key)
		metrics.CacheLookups.WithLabelValues(tierMemory, "stale").Inc()
	}

	if t.durable != nil {
		e, ok, err := t.durable.GetCache(ctx, key)
		switch {
		case err != nil:
			t.log.Warn("durable cache read failed", "key", key, "err", err)
			metrics.CacheLookups.WithLabelValues(tierDurable, "error").Inc()
		case ok && e.Fresh(now, maxAge):
			t.mem.Set(e)
			t.hit(tierDurable)
			return e.Payload, true
		case ok:
			metrics.CacheLookups.WithLabelValues(tierDurable, "stale").Inc()
			if err := t.durable.DeleteCache(ctx, key); err != nil {
				t.log.Warn("deleting stale durable entry failed", "key", key, "err", err)
			}
		}
	}

	if t.files != nil {
		e, ok, err := t.files.Read(cacheType, key)
		switch {
		case err != nil:
			t.log.Warn("file cache read failed, removing", "key", key, "err", err)
			metrics.CacheLookups.WithLabelValues(tierFile, "error").Inc()
			if err := t.files.Remove(cacheType, key); err != nil {
				t.log.Warn("removing unreadable cache file failed", "key", key, "err", err)
			}
		case ok && e.Fresh(now, maxAge):
			e.Type = cacheType
			t.mem.Set(e)
			if t.durable != nil {
				e.ExpiresAt = now.Add(t.ttl)
				if err := t.durable.SetCache(ctx, e); err != nil {
					t.log.Warn("durable back-fill failed", "key", key, "err", err)
				}
			}
			t.hit(tierFile)
			return e.Payload, true
		case ok:
			metrics.CacheLookups.WithLabelValues(tierFile, "stale").Inc()
			if err := t.files.Remove(cacheType, key); err != nil {
				t.log.Warn("removing stale cache file failed", "key", key, "err", err)
			}
		}
	}

	t.mu.Lock()
	t.misses++
	t.mu.Unlock()
	metrics.CacheLookups.WithLabelValues("all", "miss").Inc()
	t.log.Debug("cache miss", "url", url, "type", cacheType)
	return nil, false
}

func (t *Tiered) hit(tier string) {
	t.mu.Lock()
	t.hits++
	t.mu.Unlock()
	metrics.CacheLookups.WithLabelValues(tier, "hit").Inc()
}

// Set writes the payload through to every tier.
func (t *Tiered) Set(ctx context.Context, url, cacheType string, payload json.RawMessage) {
	now := t.now()
	e := Entry{
		Key:       typedKey(url, cacheType),
		Type:      cacheType,
		URL:       url,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(t.ttl),
	}

	t.mem.Set(e)
	metrics.CacheSaves.WithLabelValues(tierMemory, "ok").Inc()

	if t.durable != nil {
		if err := t.durable.SetCache(ctx, e); err != nil {
			t.log.Warn("durable cache write failed", "url", url, "err", err)
			metrics.CacheSaves.WithLabelValues(tierDurable, "error").Inc()
		} else {
			metrics.CacheSaves.WithLabelValues(tierDurable, "ok").Inc()
		}
	}
	if t.files != nil {
		if err := t.files.Write(e); err != nil {
			t.log.Warn("file cache write failed", "url", url, "err", err)
			metrics.CacheSaves.WithLabelValues(tierFile, "error").Inc()
		} else {
			metrics.CacheSaves.WithLabelValues(tierFile, "ok").Inc()
		}
	}

	t.mu.Lock()
	t.saves++
	t.mu.Unlock()
}

// Invalidate removes the entry for url and cacheType from every tier.
func (t *Tiered) Invalidate(ctx context.Context, url, cacheType string) {
	key := typedKey(url, cacheType)
	t.mem.Delete(key)
	if t.durable != nil {
		if err := t.durable.DeleteCache(ctx, key); err != nil {
			t.log.Warn("durable cache delete failed", "key", key, "err", err)
		}
	}
	if t.files != nil {
		if err := t.files.Remove(cacheType, key); err != nil {
			t.log.Warn("file cache delete failed", "key", key, "err", err)
		}
	}
}

// CleanupExpired removes entries older than maxAge from all tiers, plus
// durable rows past their expiry, and returns the number removed.
func (t *Tiered) CleanupExpired(ctx context.Context, maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)
	removed := t.mem.DeleteOlderThan(cutoff)

	if t.files != nil {
		n, err := t.files.DeleteOlderThan(cutoff)
		if err != nil {
			t.log.Warn("file cache cleanup failed", "err", err)
		}
		removed += n
	}
	if t.durable != nil {
		n, err := t.durable.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			t.log.Warn("durable cache cleanup failed", "err", err)
		}
		removed += n
		n, err = t.durable.CleanupExpiredCache(ctx)
		if err != nil {
			t.log.Warn("durable expiry cleanup failed", "err", err)
		}
		removed += n
	}

	if removed > 0 {
		t.log.Info("cleaned up cache entries", "removed", removed)
	}
	return removed
}

func (t *Tiered) Stats() Stats {
	t.mu.Lock()
	s := Stats{Hits: t.hits, Misses: t.misses, Saves: t.saves}
	t.mu.Unlock()
	s.MemoryEntries = t.mem.Len()
	s.MemoryBytes = t.mem.Bytes()
	return s
}

// Summary counts entries per type in each tier.
func (t *Tiered) Summary(ctx context.Context) Summary {
	s := Summary{
		Memory: t.mem.CountByType(),
		Files:  map[string]int{},
		Stats:  t.Stats(),
	}
	if t.files != nil {
		s.Files = t.files.CountByType()
	}
	if t.durable != nil {
		counts, err := t.durable.CountCache(ctx)
		if err != nil {
			t.log.Warn("counting durable entries failed", "err", err)
		} else {
			s.Durable = counts
			s.DurableAvailable = true
		}
	}
	return s
}

// GetJSON decodes a cached payload into T. A payload that no longer decodes
// is treated as a miss.
func GetJSON[T any](ctx context.Context, t *Tiered, url, cacheType string, maxAge time.Duration) (T, bool) {
	var v T
	raw, ok := t.Get(ctx, url, cacheType, maxAge)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.log.Warn("cached payload does not decode", "url", url, "type", cacheType, "err", err)
		return v, false
	}
	return v, true
}

func SetJSON[T any](ctx context.Context, t *Tiered, url, cacheType string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.Set(ctx, url, cacheType, raw)
	return nil
}

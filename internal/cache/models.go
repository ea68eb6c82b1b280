package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached payload. CreatedAt drives staleness in every tier;
// ExpiresAt only matters to the durable store.
type Entry struct {
	Key       string
	Type      string
	URL       string
	Payload   json.RawMessage
	CreatedAt time.Time
	ExpiresAt time.Time
	HitCount  int
}

// Fresh reports whether the entry is younger than maxAge at now.
func (e Entry) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.CreatedAt) < maxAge
}

type ResearchSource struct {
	ID         string
	Topic      string
	SourceType string
	URL        string
	Title      string
	Content    json.RawMessage
	Relevance  float64
	CreatedAt  time.Time
}

// Chunk is a knowledge base passage. ID is derived from the content so the
// same passage is stored once.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Content    string
	Metadata   json.RawMessage
	CreatedAt  time.Time
}

const savingsPerHit = 0.0001

type Stats struct {
	Hits          int
	Misses        int
	Saves         int
	MemoryEntries int
	MemoryBytes   int
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// EstimatedSavings is the spend avoided by serving hits instead of scraping, in dollars.
func (s Stats) EstimatedSavings() float64 {
	return float64(s.Hits) * savingsPerHit
}

// Summary counts entries per cache type in each tier.
type Summary struct {
	Memory           map[string]int
	Files            map[string]int
	Durable          map[string]int
	DurableAvailable bool
	Stats            Stats
}

package cache

import (
	"sync"
	"time"
)

// Memory is the in-process tier. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Get returns the entry and counts the hit.
func (m *Memory) Get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false
	}
	e.HitCount++
	m.entries[key] = e
	return e, true
}

func (m *Memory) Set(e Entry) {
	m.mu.Lock()
	m.entries[e.Key] = e
	m.mu.Unlock()
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// DeleteOlderThan drops entries created at or before cutoff.
func (m *Memory) DeleteOlderThan(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if !e.CreatedAt.After(cutoff) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Bytes is the total payload size held in memory.
func (m *Memory) Bytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		n += len(e.Payload)
	}
	return n
}

func (m *Memory) CountByType() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range m.entries {
		counts[e.Type]++
	}
	return counts
}

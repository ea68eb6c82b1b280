package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var typeDirs = map[string]string{
	"tutorial":      "tutorials",
	"documentation": "documentation",
	"course":        "courses",
	"search":        "searches",
}

type fileRecord struct {
	URL       string          `json:"url"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	CacheType string          `json:"cache_type"`
	Size      int             `json:"size"`
}

// Files is the on-disk tier: one JSON document per entry under
// <dir>/<type dir>/<key>.json.
type Files struct {
	dir string
}

func NewFiles(dir string) (*Files, error) {
	for _, sub := range typeDirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	return &Files{dir: dir}, nil
}

func (f *Files) Dir() string { return f.dir }

func typeDir(cacheType string) string {
	if d, ok := typeDirs[cacheType]; ok {
		return d
	}
	clean := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, strings.ToLower(cacheType))
	if clean == "" {
		return "other"
	}
	return clean
}

func (f *Files) path(cacheType, key string) string {
	return filepath.Join(f.dir, typeDir(cacheType), key+".json")
}

// Read returns the entry stored for key. A missing file is a miss, not an error.
func (f *Files) Read(cacheType, key string) (Entry, bool, error) {
	data, err := os.ReadFile(f.path(cacheType, key))
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Entry{}, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return Entry{
		Key:       key,
		Type:      rec.CacheType,
		URL:       rec.URL,
		Payload:   rec.Data,
		CreatedAt: rec.Timestamp,
	}, true, nil
}

func (f *Files) Write(e Entry) error {
	p := f.path(e.Type, e.Key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileRecord{
		URL:       e.URL,
		Data:      e.Payload,
		Timestamp: e.CreatedAt,
		CacheType: e.Type,
		Size:      len(e.Payload),
	}, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (f *Files) Remove(cacheType, key string) error {
	err := os.Remove(f.path(cacheType, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// DeleteOlderThan removes files written at or before cutoff. Files that
// cannot be decoded are removed as well.
func (f *Files) DeleteOlderThan(cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(f.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".json" {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		var rec fileRecord
		if json.Unmarshal(data, &rec) == nil && rec.Timestamp.After(cutoff) {
			return nil
		}
		if os.Remove(p) == nil {
			removed++
		}
		return nil
	})
	return removed, err
}

// CountByType counts stored files per type directory.
func (f *Files) CountByType() map[string]int {
	counts := make(map[string]int)
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return counts
	}
	for _, d := range entries {
		if !d.IsDir() {
			continue
		}
		files, _ := filepath.Glob(filepath.Join(f.dir, d.Name(), "*.json"))
		counts[d.Name()] = len(files)
	}
	return counts
}

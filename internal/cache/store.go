package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const defaultTTL = 24 * time.Hour

// Store is the SQLite backed durable tier. It also keeps enrichment research
// sources and knowledge base chunks so a single file holds all durable state.
type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
	now     func() time.Time
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &Store{readDB: readDB, writeDB: writeDB, now: time.Now}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Timestamps are stored as unix nanoseconds so range filters compare numbers.
func (s *Store) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			cache_key     TEXT PRIMARY KEY,
			cache_type    TEXT NOT NULL,
			url           TEXT NOT NULL DEFAULT '',
			data          TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			expires_at    INTEGER NOT NULL,
			hit_count     INTEGER NOT NULL DEFAULT 0,
			last_accessed INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
		CREATE INDEX IF NOT EXISTS idx_cache_type ON cache_entries(cache_type);

		CREATE TABLE IF NOT EXISTS research_sources (
			id          TEXT PRIMARY KEY,
			topic       TEXT NOT NULL,
			source_type TEXT NOT NULL,
			url         TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL,
			relevance   REAL NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_research_topic ON research_sources(topic);

		CREATE TABLE IF NOT EXISTS kb_chunks (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			source      TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL,
			metadata    TEXT NOT NULL DEFAULT '{}',
			created_at  INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	return errors.Join(errs...)
}

// SetCache upserts an entry. A zero CreatedAt means now and a zero ExpiresAt
// means CreatedAt plus 24h. Overwriting an existing key bumps its hit count.
func (s *Store) SetCache(ctx context.Context, e Entry) error {
	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.ExpiresAt.IsZero() {
		e.ExpiresAt = e.CreatedAt.Add(defaultTTL)
	}
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_key, cache_type, url, data, created_at, expires_at, hit_count, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			data = excluded.data,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			hit_count = cache_entries.hit_count + 1,
			last_accessed = excluded.last_accessed
	`, e.Key, e.Type, e.URL, string(e.Payload), e.CreatedAt.UnixNano(), e.ExpiresAt.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("setting cache entry %s: %w", e.Key, err)
	}
	return nil
}

// GetCache returns an unexpired entry and records the access.
func (s *Store) GetCache(ctx context.Context, key string) (Entry, bool, error) {
	now := s.now()
	var (
		e                Entry
		data             string
		created, expires int64
	)
	err := s.readDB.QueryRowContext(ctx, `
		SELECT cache_key, cache_type, url, data, created_at, expires_at, hit_count
		FROM cache_entries WHERE cache_key = ? AND expires_at > ?
	`, key, now.UnixNano()).Scan(&e.Key, &e.Type, &e.URL, &data, &created, &expires, &e.HitCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	e.Payload = json.RawMessage(data)
	e.CreatedAt = time.Unix(0, created)
	e.ExpiresAt = time.Unix(0, expires)

	if _, err := s.writeDB.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1, last_accessed = ? WHERE cache_key = ?`,
		now.UnixNano(), key); err != nil {
		return Entry{}, false, fmt.Errorf("recording cache access %s: %w", key, err)
	}
	e.HitCount++
	return e, true, nil
}

func (s *Store) DeleteCache(ctx context.Context, key string) error {
	if _, err := s.writeDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("deleting cache entry %s: %w", key, err)
	}
	return nil
}

// CleanupExpiredCache deletes entries past their expiry and returns how many went.
func (s *Store) CleanupExpiredCache(ctx context.Context) (int, error) {
	return s.deleteWhere(ctx, `DELETE FROM cache_entries WHERE expires_at < ?`, s.now().UnixNano())
}

// DeleteOlderThan deletes entries created before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return s.deleteWhere(ctx, `DELETE FROM cache_entries WHERE created_at <= ?`, cutoff.UnixNano())
}

func (s *Store) deleteWhere(ctx context.Context, query string, arg int64) (int, error) {
	res, err := s.writeDB.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("cleaning cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountCache returns the number of unexpired entries per cache type.
func (s *Store) CountCache(ctx context.Context) (map[string]int, error) {
	rows, err := s.readDB.QueryContext(ctx,
		`SELECT cache_type, COUNT(*) FROM cache_entries WHERE expires_at > ? GROUP BY cache_type`,
		s.now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("counting cache entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scanning cache count: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

func (s *Store) SaveResearchSource(ctx context.Context, r ResearchSource) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	content := string(r.Content)
	if content == "" {
		content = "{}"
	}
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO research_sources (id, topic, source_type, url, title, content, relevance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			relevance = excluded.relevance
	`, r.ID, r.Topic, r.SourceType, r.URL, r.Title, content, r.Relevance, r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving research source %s: %w", r.ID, err)
	}
	return nil
}

// ListResearchSources returns saved sources newest first, optionally for one topic.
func (s *Store) ListResearchSources(ctx context.Context, topic string, limit int) ([]ResearchSource, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, topic, source_type, url, title, content, relevance, created_at FROM research_sources`
	var args []any
	if topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, topic)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying research sources: %w", err)
	}
	defer rows.Close()

	var out []ResearchSource
	for rows.Next() {
		var (
			r       ResearchSource
			content string
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Topic, &r.SourceType, &r.URL, &r.Title, &content, &r.Relevance, &created); err != nil {
			return nil, fmt.Errorf("scanning research source: %w", err)
		}
		r.Content = json.RawMessage(content)
		r.CreatedAt = time.Unix(0, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveChunks inserts chunks whose ID is not stored yet and returns how many were new.
func (s *Store) SaveChunks(ctx context.Context, chunks []Chunk) (int, error) {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO kb_chunks (id, document_id, source, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := s.now()
	inserted := 0
	for _, c := range chunks {
		meta := string(c.Metadata)
		if meta == "" {
			meta = "{}"
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		res, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Source, c.Content, meta, c.CreatedAt.UnixNano())
		if err != nil {
			return 0, fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// LoadChunks returns every stored chunk in insertion order.
func (s *Store) LoadChunks(ctx context.Context) ([]Chunk, error) {
	rows, err := s.readDB.QueryContext(ctx,
		`SELECT id, document_id, source, content, metadata, created_at FROM kb_chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var (
			c       Chunk
			meta    string
			created int64
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Source, &c.Content, &meta, &created); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Metadata = json.RawMessage(meta)
		c.CreatedAt = time.Unix(0, created)
		out = append(out, c)
	}
	return out, rows.Err()
}

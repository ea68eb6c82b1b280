package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testFiles(t *testing.T) *Files {
	t.Helper()
	f, err := NewFiles(filepath.Join(t.TempDir(), "educational"))
	if err != nil {
		t.Fatalf("creating file tier: %v", err)
	}
	return f
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func testTiered(t *testing.T, durable Durable, files *Files) (*Tiered, *clock) {
	t.Helper()
	// The store checks expiry against the wall clock, so start from it.
	c := &clock{now: time.Now()}
	tc := NewTiered(durable, files)
	tc.now = c.Now
	return tc, c
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("https://example.com/a", map[string]any{"cache_type": "tutorial", "depth": 1})
	b := Key("https://example.com/a", map[string]any{"depth": 1, "cache_type": "tutorial"})
	if a != b {
		t.Errorf("expected equal keys for equal params, got %s and %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
	if a == Key("https://example.com/b", map[string]any{"cache_type": "tutorial", "depth": 1}) {
		t.Error("expected different URLs to produce different keys")
	}
	if typedKey("u", "tutorial") == typedKey("u", "course") {
		t.Error("expected cache type to be part of the key")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	e := Entry{Key: "k1", Type: "tutorial", URL: "https://x", Payload: json.RawMessage(`{"a":1}`)}
	if err := s.SetCache(ctx, e); err != nil {
		t.Fatalf("SetCache: %v", err)
	}

	got, ok, err := s.GetCache(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("GetCache: ok=%v err=%v", ok, err)
	}
	if string(got.Payload) != `{"a":1}` || got.Type != "tutorial" || got.URL != "https://x" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.HitCount != 1 {
		t.Errorf("expected hit count 1 after first read, got %d", got.HitCount)
	}

	got, _, _ = s.GetCache(ctx, "k1")
	if got.HitCount != 2 {
		t.Errorf("expected hit count 2 after second read, got %d", got.HitCount)
	}
}

func TestStoreUpsertBumpsHitCount(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	e := Entry{Key: "k", Type: "course", Payload: json.RawMessage(`1`)}
	s.SetCache(ctx, e)
	e.Payload = json.RawMessage(`2`)
	s.SetCache(ctx, e)

	got, ok, _ := s.GetCache(ctx, "k")
	if !ok || string(got.Payload) != "2" {
		t.Fatalf("expected overwritten payload, got %+v", got)
	}
	if got.HitCount != 2 {
		t.Errorf("expected upsert plus read to give 2 hits, got %d", got.HitCount)
	}
}

func TestStoreExpiry(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()
	s.SetCache(ctx, Entry{Key: "old", Type: "tutorial", Payload: json.RawMessage(`{}`),
		CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)})
	s.SetCache(ctx, Entry{Key: "new", Type: "tutorial", Payload: json.RawMessage(`{}`)})

	if _, ok, _ := s.GetCache(ctx, "old"); ok {
		t.Error("expected expired entry to be hidden")
	}
	n, err := s.CleanupExpiredCache(ctx)
	if err != nil {
		t.Fatalf("CleanupExpiredCache: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired entry removed, got %d", n)
	}
	counts, _ := s.CountCache(ctx)
	if counts["tutorial"] != 1 {
		t.Errorf("expected 1 remaining entry, got %v", counts)
	}
}

func TestStoreDeleteOlderThan(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()
	s.SetCache(ctx, Entry{Key: "a", Type: "t", Payload: json.RawMessage(`{}`), CreatedAt: now.Add(-10 * time.Hour)})
	s.SetCache(ctx, Entry{Key: "b", Type: "t", Payload: json.RawMessage(`{}`), CreatedAt: now})

	n, err := s.DeleteOlderThan(ctx, now.Add(-time.Hour))
	if err != nil || n != 1 {
		t.Errorf("expected 1 deletion, got %d (%v)", n, err)
	}
}

func TestResearchSources(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Now()
	for i, topic := range []string{"variables", "functions", "variables"} {
		err := s.SaveResearchSource(ctx, ResearchSource{
			ID:         topic + string(rune('a'+i)),
			Topic:      topic,
			SourceType: "enrichment",
			Content:    json.RawMessage(`{"topic":"` + topic + `"}`),
			Relevance:  0.8,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveResearchSource: %v", err)
		}
	}

	got, err := s.ListResearchSources(ctx, "variables", 0)
	if err != nil {
		t.Fatalf("ListResearchSources: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sources for topic, got %d", len(got))
	}
	if got[0].ID != "variablesc" {
		t.Errorf("expected newest first, got %s", got[0].ID)
	}

	all, _ := s.ListResearchSources(ctx, "", 0)
	if len(all) != 3 {
		t.Errorf("expected 3 sources overall, got %d", len(all))
	}
}

func TestChunksDeduplicate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	chunks := []Chunk{
		{ID: "h1_0", DocumentID: "d1", Content: "first"},
		{ID: "h1_1", DocumentID: "d1", Content: "second"},
	}
	n, err := s.SaveChunks(ctx, chunks)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 new chunks, got %d (%v)", n, err)
	}
	n, _ = s.SaveChunks(ctx, chunks)
	if n != 0 {
		t.Errorf("expected duplicates to be skipped, got %d new", n)
	}
	got, err := s.LoadChunks(ctx)
	if err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	if len(got) != 2 || got[0].Content != "first" || string(got[1].Metadata) != "{}" {
		t.Errorf("unexpected chunks: %+v", got)
	}
}

func TestTieredRoundTrip(t *testing.T) {
	tc, _ := testTiered(t, testStore(t), testFiles(t))
	ctx := context.Background()
	payload := json.RawMessage(`{"title":"Go tour"}`)

	tc.Set(ctx, "https://go.dev/tour", "tutorial", payload)
	for i := 0; i < 2; i++ {
		got, ok := tc.Get(ctx, "https://go.dev/tour", "tutorial", time.Hour)
		if !ok || string(got) != string(payload) {
			t.Fatalf("get %d: expected payload, got %s ok=%v", i, got, ok)
		}
	}
	s := tc.Stats()
	if s.Hits != 2 || s.Misses != 0 || s.Saves != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.EstimatedSavings() != 0.0002 {
		t.Errorf("expected savings of 0.0002, got %v", s.EstimatedSavings())
	}
}

func TestTieredExpiryBoundary(t *testing.T) {
	tc, c := testTiered(t, nil, testFiles(t))
	ctx := context.Background()
	tc.Set(ctx, "u", "tutorial", json.RawMessage(`1`))

	c.now = c.now.Add(time.Hour - time.Nanosecond)
	if _, ok := tc.Get(ctx, "u", "tutorial", time.Hour); !ok {
		t.Error("expected hit just before max age")
	}
	c.now = c.now.Add(time.Nanosecond)
	if _, ok := tc.Get(ctx, "u", "tutorial", time.Hour); ok {
		t.Error("expected miss at exactly max age")
	}
	if tc.mem.Len() != 0 {
		t.Error("expected stale memory entry to be deleted")
	}
	if _, ok, _ := tc.files.Read("tutorial", typedKey("u", "tutorial")); ok {
		t.Error("expected stale file to be deleted")
	}
}

func TestTieredBackfillFromDurable(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	writer, _ := testTiered(t, store, nil)
	writer.Set(ctx, "u", "course", json.RawMessage(`"x"`))

	// A fresh process: empty memory, same durable store.
	reader, c := testTiered(t, store, nil)
	c.now = writer.now()
	if _, ok := reader.Get(ctx, "u", "course", time.Hour); !ok {
		t.Fatal("expected durable hit")
	}
	if reader.mem.Len() != 1 {
		t.Error("expected durable hit to back-fill memory")
	}
}

func TestTieredBackfillFromFiles(t *testing.T) {
	files := testFiles(t)
	store := testStore(t)
	ctx := context.Background()
	writer, _ := testTiered(t, nil, files)
	writer.Set(ctx, "u", "search", json.RawMessage(`[1,2]`))

	reader, _ := testTiered(t, store, files)
	got, ok := reader.Get(ctx, "u", "search", time.Hour)
	if !ok || string(got) != "[1,2]" {
		t.Fatalf("expected file hit, got %s ok=%v", got, ok)
	}
	if reader.mem.Len() != 1 {
		t.Error("expected file hit to back-fill memory")
	}
	if _, ok, _ := store.GetCache(ctx, typedKey("u", "search")); !ok {
		t.Error("expected file hit to back-fill the durable store")
	}
}

type failingDurable struct{}

var errDown = errors.New("database is down")

func (failingDurable) SetCache(context.Context, Entry) error { return errDown }
func (failingDurable) GetCache(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errDown
}
func (failingDurable) DeleteCache(context.Context, string) error { return errDown }
func (failingDurable) CleanupExpiredCache(context.Context) (int, error) {
	return 0, errDown
}
func (failingDurable) DeleteOlderThan(context.Context, time.Time) (int, error) {
	return 0, errDown
}
func (failingDurable) CountCache(context.Context) (map[string]int, error) { return nil, errDown }

func TestTieredSurvivesFailingDurableTier(t *testing.T) {
	tc, _ := testTiered(t, failingDurable{}, testFiles(t))
	ctx := context.Background()
	tc.Set(ctx, "u", "tutorial", json.RawMessage(`{}`))

	tc.mem.Delete(typedKey("u", "tutorial"))
	if _, ok := tc.Get(ctx, "u", "tutorial", time.Hour); !ok {
		t.Error("expected the file tier to serve the entry")
	}
	if tc.Summary(ctx).DurableAvailable {
		t.Error("expected durable tier to be reported unavailable")
	}
	tc.CleanupExpired(ctx, time.Hour)
}

func TestTieredInvalidate(t *testing.T) {
	tc, _ := testTiered(t, testStore(t), testFiles(t))
	ctx := context.Background()
	tc.Set(ctx, "u", "tutorial", json.RawMessage(`{}`))
	tc.Invalidate(ctx, "u", "tutorial")
	if _, ok := tc.Get(ctx, "u", "tutorial", time.Hour); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestCleanupExpiredRemovesCorruptFiles(t *testing.T) {
	files := testFiles(t)
	tc, c := testTiered(t, nil, files)
	ctx := context.Background()
	tc.Set(ctx, "old", "tutorial", json.RawMessage(`{}`))
	c.now = c.now.Add(2 * time.Hour)
	tc.Set(ctx, "new", "tutorial", json.RawMessage(`{}`))

	corrupt := filepath.Join(files.Dir(), "tutorials", "garbage.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	removed := tc.CleanupExpired(ctx, time.Hour)
	// old entry from memory and from disk, plus the corrupt file
	if removed != 3 {
		t.Errorf("expected 3 removals, got %d", removed)
	}
	if _, err := os.Stat(corrupt); !os.IsNotExist(err) {
		t.Error("expected corrupt file to be removed")
	}
	if _, ok := tc.Get(ctx, "new", "tutorial", time.Hour); !ok {
		t.Error("expected fresh entry to survive cleanup")
	}
}

func TestCorruptFileIsAMiss(t *testing.T) {
	files := testFiles(t)
	tc, _ := testTiered(t, nil, files)
	key := typedKey("u", "tutorial")
	os.WriteFile(filepath.Join(files.Dir(), "tutorials", key+".json"), []byte("nope"), 0o644)

	if _, ok := tc.Get(context.Background(), "u", "tutorial", time.Hour); ok {
		t.Error("expected corrupt file to read as a miss")
	}
	if tc.Stats().Misses != 1 {
		t.Errorf("expected one miss, got %+v", tc.Stats())
	}
	if _, err := os.Stat(filepath.Join(files.Dir(), "tutorials", key+".json")); !os.IsNotExist(err) {
		t.Errorf("expected the corrupt file to be removed, stat err = %v", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	tc, _ := testTiered(t, nil, nil)
	ctx := context.Background()
	type item struct {
		Title string  `json:"title"`
		Score float64 `json:"score"`
	}
	if err := SetJSON(ctx, tc, "u", "search", []item{{"Go", 0.9}}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	got, ok := GetJSON[[]item](ctx, tc, "u", "search", time.Hour)
	if !ok || len(got) != 1 || got[0].Title != "Go" {
		t.Errorf("unexpected decoded value: %+v ok=%v", got, ok)
	}
	if _, ok := GetJSON[int](ctx, tc, "u", "search", time.Hour); ok {
		t.Error("expected a payload of the wrong shape to be a miss")
	}
}

func TestSummary(t *testing.T) {
	tc, _ := testTiered(t, testStore(t), testFiles(t))
	ctx := context.Background()
	tc.Set(ctx, "a", "tutorial", json.RawMessage(`{}`))
	tc.Set(ctx, "b", "course", json.RawMessage(`{}`))

	s := tc.Summary(ctx)
	if !s.DurableAvailable {
		t.Error("expected durable tier available")
	}
	if s.Memory["tutorial"] != 1 || s.Durable["course"] != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.Files["tutorials"] != 1 || s.Files["courses"] != 1 {
		t.Errorf("unexpected file counts: %v", s.Files)
	}
}

package kb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ScientiaCapital/claude-education-platform/internal/cache"
	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
	"github.com/ScientiaCapital/claude-education-platform/internal/enrich"
	"github.com/ScientiaCapital/claude-education-platform/internal/fetch"
	"github.com/ScientiaCapital/claude-education-platform/internal/scraper"
)

func words(n int) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = fmt.Sprintf("w%04d", i)
	}
	return strings.Join(ws, " ")
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	chunks := Split(words(500), 1000, 200)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 1000 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
	for i := 1; i < len(chunks); i++ {
		first := strings.Fields(chunks[i])[0]
		if !strings.Contains(chunks[i-1], first) {
			t.Errorf("chunk %d does not overlap with the previous one", i)
		}
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{"empty", "  \n", 100, 0, nil},
		{"short", "  one chunk  ", 100, 10, []string{"one chunk"}},
		{"paragraphs first", "para one.\n\npara two.", 15, 0, []string{"para one.", "para two."}},
		{"no separators", strings.Repeat("x", 25), 10, 0, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.size, tt.overlap)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("Split = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIndexSearch(t *testing.T) {
	x := NewIndex()
	x.Add(Chunk{ID: "1", Title: "Loops", Content: "A for loop repeats code. Python loops iterate over lists."})
	x.Add(Chunk{ID: "2", Title: "Functions", Content: "Functions group code so it can be reused."})
	x.Add(Chunk{ID: "3", Title: "Tacos", Content: "Tortillas, salsa and carne asada."})
	if x.Add(Chunk{ID: "1", Content: "duplicate"}) {
		t.Error("a duplicate id must not be indexed")
	}

	hits := x.Search("How do python loops work?", 5)
	if len(hits) == 0 || hits[0].Chunk.ID != "1" {
		t.Fatalf("expected the loops chunk first, got %+v", hits)
	}
	if got := x.Search("code", 1); len(got) != 1 {
		t.Errorf("expected k to cap results, got %d", len(got))
	}
	if got := x.Search("quantum chromodynamics", 5); len(got) != 0 {
		t.Errorf("expected no hits, got %+v", got)
	}
	if got := x.Search("the and of", 5); got != nil {
		t.Errorf("a stop-word query matches nothing, got %+v", got)
	}
}

func openStore(t *testing.T, path string) *cache.Store {
	t.Helper()
	s, err := cache.Open(path)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var loopsDoc = Document{
	Source:  "test",
	Title:   "Loops",
	URL:     "https://example.com/loops",
	Content: "A for loop repeats code.\n\nPython loops iterate over lists and ranges.",
}

func TestAddDeduplicatesAndPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kb.db")
	store := openStore(t, path)

	kb, err := Open(ctx, store, WithChunking(40, 10))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	n, err := kb.Add(ctx, []Document{loopsDoc, {Title: "empty"}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected several chunks, got %d", n)
	}
	again, _ := kb.Add(ctx, []Document{loopsDoc})
	if again != 0 {
		t.Errorf("expected no new chunks for the same content, got %d", again)
	}

	reopened, err := Open(ctx, store)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Len() != n {
		t.Errorf("expected %d chunks after reopening, got %d", n, reopened.Len())
	}
	hits := reopened.Search("python loops", 0)
	if len(hits) == 0 {
		t.Fatal("expected hits from the reopened knowledge base")
	}
	c := hits[0].Chunk
	if c.Title != "Loops" || c.URL != loopsDoc.URL {
		t.Errorf("chunk metadata lost across reopen: %+v", c)
	}
	if !strings.HasPrefix(c.ID, c.DocumentID+"_") {
		t.Errorf("chunk id %q should be the document hash plus index", c.ID)
	}
}

type fakeGenerator struct {
	prompt string
	answer string
	err    error
}

func (g *fakeGenerator) Name() string { return "anthropic" }

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.answer, g.err
}

func TestAsk(t *testing.T) {
	ctx := context.Background()
	g := &fakeGenerator{answer: "  Loops repeat code.  "}
	kb, _ := Open(ctx, nil, WithGenerator(g, nil, nil))
	kb.Add(ctx, []Document{loopsDoc})

	ans, err := kb.Ask(ctx, "What do python loops do?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "Loops repeat code." {
		t.Errorf("unexpected answer %q", ans.Text)
	}
	if len(ans.Sources) == 0 {
		t.Error("expected sources")
	}
	if !strings.Contains(g.prompt, "Source: Loops") || !strings.Contains(g.prompt, "Question: What do python loops do?") {
		t.Errorf("prompt missing context or question:\n%s", g.prompt)
	}
	if ans.Cost <= 0 {
		t.Error("expected a cost estimate")
	}
}

func TestAskErrors(t *testing.T) {
	ctx := context.Background()
	kb, _ := Open(ctx, nil)
	if _, err := kb.Ask(ctx, "anything", 0); !errors.Is(err, ErrNoGenerator) {
		t.Errorf("expected ErrNoGenerator, got %v", err)
	}

	failing := &fakeGenerator{err: errors.New("invalid api key")}
	kb, _ = Open(ctx, nil, WithGenerator(failing, nil, nil))
	if _, err := kb.Ask(ctx, "anything", 0); err == nil {
		t.Error("expected the generation error")
	}
}

func TestFromScrape(t *testing.T) {
	res := scraper.Result{
		ContentType: classify.Tutorial,
		Content: []fetch.Page{
			{URL: "https://a.com", Title: "A", Markdown: "alpha"},
			{URL: "https://b.com", Markdown: "beta"},
		},
	}
	docs := FromScrape(res)
	if len(docs) != 2 || docs[0].Source != "scrape:tutorial" || docs[1].Title != "https://b.com" {
		t.Errorf("unexpected documents: %+v", docs)
	}
	res.Error = "boom"
	if FromScrape(res) != nil {
		t.Error("failed scrapes yield no documents")
	}
}

func TestFromSearchAndEnrichment(t *testing.T) {
	docs := FromSearch([]scraper.Item{{Title: "Loops", Description: "Repeat things", Source: "tavily"}})
	if len(docs) != 1 || docs[0].Content != "Loops\n\nRepeat things" {
		t.Errorf("unexpected search documents: %+v", docs)
	}

	topic := enrich.Topic{
		Topic:                 "variables",
		AgeGroup:              "10-16",
		CulturalAdaptations:   enrich.Adaptations("variables", enrich.LanguageSpanish),
		DifficultyProgression: enrich.Progression("variables", "10-16"),
	}
	docs = FromEnrichment(topic)
	if len(docs) != 1 || !strings.Contains(docs[0].Content, "Introducción") {
		t.Errorf("unexpected enrichment documents: %+v", docs)
	}
}

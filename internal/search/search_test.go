package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ScientiaCapital/claude-education-platform/internal/config"
)

type stubSearcher struct {
	name    string
	results []Result
	err     error
}

func (s stubSearcher) Name() string { return s.name }
func (s stubSearcher) Search(context.Context, string, int) ([]Result, error) {
	return s.results, s.err
}

func TestCollectAllKeepsOrderAndErrors(t *testing.T) {
	searchers := []Searcher{
		stubSearcher{name: "a", results: []Result{{URL: "a1"}, {URL: "a2"}}},
		stubSearcher{name: "broken", err: errors.New("boom")},
		stubSearcher{name: "b", results: []Result{{URL: "b1"}}},
	}
	got := CollectAll(context.Background(), searchers, "q", 5)
	if len(got.Results) != 3 || got.Results[0].URL != "a1" || got.Results[2].URL != "b1" {
		t.Errorf("unexpected results: %+v", got.Results)
	}
	if len(got.Errors) != 1 || !strings.Contains(got.Errors[0].Error(), "broken") {
		t.Errorf("expected one named error, got %v", got.Errors)
	}
}

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SearchDepth != "advanced" || req.MaxResults != 3 || req.Query != "go loops" {
			t.Errorf("unexpected request %+v", req)
		}
		if r.Header.Get("Authorization") != "Bearer tv" {
			t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"results":[{"title":"Go loops","url":"https://go.dev","content":"for loops","score":0.9}]}`))
	}))
	defer srv.Close()

	tv := NewTavily("tv")
	tv.url = srv.URL
	got, err := tv.Search(context.Background(), "go loops", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Source != "tavily" || got[0].Score != 0.9 || got[0].Content != "for loops" {
		t.Errorf("unexpected results %+v", got)
	}
}

func TestExaSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "ex" {
			t.Errorf("missing api key header")
		}
		var req exaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Contents.Summary || req.NumResults != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"results":[
			{"title":"A","url":"https://a","summary":"sum","publishedDate":"2025-01-02T00:00:00Z"},
			{"title":"B","url":"https://b","text":"body only"}]}`))
	}))
	defer srv.Close()

	ex := NewExa("ex")
	ex.url = srv.URL
	got, err := ex.Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Content != "sum" || got[1].Content != "body only" {
		t.Errorf("unexpected results %+v", got)
	}
	if got[0].Published.Year() != 2025 || !got[1].Published.IsZero() {
		t.Errorf("unexpected published dates %v / %v", got[0].Published, got[1].Published)
	}
}

func TestExaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ex := NewExa("ex")
	ex.url = srv.URL
	if _, err := ex.Search(context.Background(), "q", 2); err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected 429 error, got %v", err)
	}
}

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Edu</title>
<item><title>Python Closures Explained</title><link>https://edu.test/closures</link>
<description>&lt;p&gt;Learn how closures capture variables&lt;/p&gt;</description>
<pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate></item>
<item><title>JavaScript Promises</title><link>https://edu.test/promises</link>
<description>Async code in the browser, with closures</description></item>
<item><title>Rust Ownership</title><link>https://edu.test/rust</link>
<description>Borrowing rules</description></item>
</channel></rss>`

func TestFeedsSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFeeds([]config.Feed{{Name: "Edu", URL: srv.URL, Enabled: true}})
	got, err := f.Search(context.Background(), "closures tutorial programming education learn", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matching items, got %+v", got)
	}
	if got[0].URL != "https://edu.test/closures" || got[0].Score != 1 || got[0].Source != "feed:Edu" {
		t.Errorf("unexpected first result %+v", got[0])
	}
	if got[0].Content != "Learn how closures capture variables" {
		t.Errorf("expected html stripped description, got %q", got[0].Content)
	}
	if got[1].Score != 0.5 {
		t.Errorf("expected description-only match to score 0.5, got %v", got[1].Score)
	}
	if got[0].Published.IsZero() {
		t.Error("expected published date")
	}
}

func TestFeedsSearchAllNoise(t *testing.T) {
	f := NewFeeds(nil)
	got, err := f.Search(context.Background(), "tutorial programming", 10)
	if err != nil || got != nil {
		t.Errorf("expected nothing for a query of noise words, got %v (%v)", got, err)
	}
}

func TestFeedsSearchReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := NewFeeds([]config.Feed{{Name: "Dead", URL: srv.URL}})
	if _, err := f.Search(context.Background(), "closures", 10); err == nil {
		t.Error("expected error when every feed fails")
	}
}

func TestTruncateAndStrip(t *testing.T) {
	if truncate("こんにちは世界です", 5) != "こん..." {
		t.Error("expected rune-aware truncation")
	}
	if stripHTML("<b>Bold</b>  and <i>italic</i>") != "Bold and italic" {
		t.Error("unexpected strip result")
	}
}

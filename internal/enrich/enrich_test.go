package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ScientiaCapital/claude-education-platform/internal/cache"
	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
	"github.com/ScientiaCapital/claude-education-platform/internal/scraper"
)

type fakeSearch struct {
	mu      sync.Mutex
	items   []scraper.Item
	queries []string
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeSearch) Search(ctx context.Context, topic string, maxResults int) []scraper.Item {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.maxInFlight.Load()
		if n <= old || f.maxInFlight.CompareAndSwap(old, n) {
			break
		}
	}

	f.mu.Lock()
	f.queries = append(f.queries, topic)
	f.mu.Unlock()

	if strings.HasPrefix(topic, "boom") {
		panic("search exploded")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.items
}

type fakeStore struct {
	mu      sync.Mutex
	sources []cache.ResearchSource
	err     error
}

func (s *fakeStore) SaveResearchSource(ctx context.Context, r cache.ResearchSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sources = append(s.sources, r)
	return nil
}

func sampleItems() []scraper.Item {
	return []scraper.Item{
		{Title: "Functions tutorial for beginners", URL: "https://a.com/1", RelevanceScore: 0.8, EstimatedType: classify.Tutorial},
		{Title: "Advanced functions deep dive", URL: "https://a.com/2", RelevanceScore: 0.9, EstimatedType: classify.Tutorial},
		{Title: "Function examples", URL: "https://a.com/3", RelevanceScore: 0.6, EstimatedType: classify.Example},
		{Title: "Practice problems: functions", URL: "https://a.com/4", RelevanceScore: 0.7, EstimatedType: classify.General},
		{Title: "Another tutorial", URL: "https://a.com/5", RelevanceScore: 0.95, EstimatedType: classify.Tutorial},
		{Title: "Functions reference", URL: "https://a.com/6", RelevanceScore: 0.9, EstimatedType: classify.Documentation},
	}
}

func testEnricher(t *testing.T, s Searcher, store SourceStore, opts ...Option) *Enricher {
	t.Helper()
	e := New(s, store, opts...)
	var n atomic.Int32
	e.newID = func() string { return "id-" + string(rune('0'+n.Add(1))) }
	return e
}

func TestEnrichTopic(t *testing.T) {
	search := &fakeSearch{items: sampleItems()}
	store := &fakeStore{}
	e := testEnricher(t, search, store)

	got := e.EnrichTopic(context.Background(), "Functions", "", "")
	if got.Error != "" {
		t.Fatalf("unexpected error: %s", got.Error)
	}
	if got.AgeGroup != "10-16" || got.Language != "spanish" {
		t.Errorf("expected defaults 10-16/spanish, got %s/%s", got.AgeGroup, got.Language)
	}
	if search.queries[0] != "Functions programming tutorial beginner" {
		t.Errorf("unexpected search query %q", search.queries[0])
	}

	if len(got.Tutorials) != 2 || got.Tutorials[0].URL != "https://a.com/5" {
		t.Errorf("expected 2 tutorials sorted by relevance, got %+v", got.Tutorials)
	}
	for _, r := range got.Resources() {
		if r.Difficulty == classify.Advanced {
			t.Errorf("advanced content kept for 10-16: %+v", r)
		}
	}
	if len(got.Examples) != 1 || len(got.Exercises) != 1 {
		t.Errorf("expected 1 example and 1 exercise, got %d and %d", len(got.Examples), len(got.Exercises))
	}

	// 120 + (2*20 + 10 + 15) * 1.3
	if got.LearningMinutes != 205 || got.EstimatedLearningTime != "3 horas 25 minutos" {
		t.Errorf("unexpected learning time %d (%s)", got.LearningMinutes, got.EstimatedLearningTime)
	}
	if len(got.DifficultyProgression) != 3 {
		t.Errorf("expected 3 stages for 10-16, got %d", len(got.DifficultyProgression))
	}
	if len(got.CulturalAdaptations) != 1 || got.CulturalAdaptations[0].LanguageNotes == "" {
		t.Errorf("expected one adaptation with Spanish notes, got %+v", got.CulturalAdaptations)
	}

	if len(store.sources) != 1 {
		t.Fatalf("expected the enrichment to be saved, got %d sources", len(store.sources))
	}
	src := store.sources[0]
	if src.ID != "id-1" || got.ID != "id-1" || src.SourceType != "enrichment" || src.Topic != "Functions" {
		t.Errorf("unexpected saved source: %+v", src)
	}
	var decoded Topic
	if err := json.Unmarshal(src.Content, &decoded); err != nil {
		t.Fatalf("saved content is not a topic: %v", err)
	}
	if len(decoded.Tutorials) != 2 {
		t.Errorf("saved content lost tutorials: %+v", decoded)
	}
}

func TestEnrichTopicTeenGroup(t *testing.T) {
	e := testEnricher(t, &fakeSearch{items: sampleItems()}, nil)

	got := e.EnrichTopic(context.Background(), "functions", classify.AgeGroupTeen, LanguageEnglish)
	if len(got.DifficultyProgression) != 4 || got.DifficultyProgression[3].TimeEstimate != "90 minutos" {
		t.Errorf("expected the advanced stage for 14-18, got %+v", got.DifficultyProgression)
	}
	if got.LearningMinutes != 185 {
		t.Errorf("expected 185 minutes without the young multiplier, got %d", got.LearningMinutes)
	}
	if got.CulturalAdaptations[0].LanguageNotes != "" {
		t.Error("English enrichments carry no Spanish notes")
	}
	if got.ID != "" {
		t.Error("without a store nothing is saved")
	}
}

func TestEnrichTopicSaveFailureIsNotFatal(t *testing.T) {
	e := testEnricher(t, &fakeSearch{items: sampleItems()}, &fakeStore{err: errors.New("disk full")})
	got := e.EnrichTopic(context.Background(), "loops", "", "")
	if got.Error != "" {
		t.Errorf("save failures must not fail the enrichment: %s", got.Error)
	}
}

func TestEnrichTopicCancelled(t *testing.T) {
	search := &fakeSearch{}
	e := testEnricher(t, search, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := e.EnrichTopic(ctx, "loops", "", "")
	if got.Error == "" {
		t.Error("expected an error for a cancelled context")
	}
	if len(search.queries) != 0 {
		t.Error("no search should run after cancellation")
	}
}

func TestEnrichTopicsBoundedConcurrency(t *testing.T) {
	search := &fakeSearch{items: sampleItems(), delay: 20 * time.Millisecond}
	e := testEnricher(t, search, nil)

	topics := []string{"a", "b", "boom", "c", "d", "e", "f"}
	var mu sync.Mutex
	var reported []string
	results := e.EnrichTopics(context.Background(), topics, "", "", func(t Topic) {
		mu.Lock()
		reported = append(reported, t.Topic)
		mu.Unlock()
	})

	if got := search.maxInFlight.Load(); got > 3 {
		t.Errorf("expected at most 3 topics in flight, saw %d", got)
	}
	if len(results) != len(topics) || len(reported) != len(topics) {
		t.Fatalf("expected %d results and reports, got %d and %d", len(topics), len(results), len(reported))
	}
	for i, r := range results {
		if r.Topic != topics[i] {
			t.Errorf("result %d is %q, want %q", i, r.Topic, topics[i])
		}
		if topics[i] == "boom" {
			if !strings.Contains(r.Error, "search exploded") {
				t.Errorf("expected the panic in the topic error, got %q", r.Error)
			}
			continue
		}
		if r.Error != "" {
			t.Errorf("topic %q failed: %s", r.Topic, r.Error)
		}
	}
}

func TestWithConcurrency(t *testing.T) {
	search := &fakeSearch{delay: 10 * time.Millisecond}
	e := testEnricher(t, search, nil, WithConcurrency(1))
	e.EnrichTopics(context.Background(), []string{"a", "b", "c"}, "", "", nil)
	if got := search.maxInFlight.Load(); got != 1 {
		t.Errorf("expected serial enrichment, saw %d in flight", got)
	}
}

func TestSuggestions(t *testing.T) {
	search := &fakeSearch{items: []scraper.Item{
		{Title: "Variables beyond basics", URL: "https://a.com/1", RelevanceScore: 0.9},
		{Title: "Weak match", URL: "https://a.com/2", RelevanceScore: 0.6},
		{Title: "Scopes", URL: "https://a.com/3", RelevanceScore: 0.75},
	}}
	e := testEnricher(t, search, nil)

	got := e.Suggestions(context.Background(), "variables", Progress{CompletedLessons: 3, AverageScore: 90})
	if search.queries[0] != "variables next steps advanced" {
		t.Errorf("unexpected query %q", search.queries[0])
	}
	if len(got) != 3 {
		t.Fatalf("expected 2 extensions and 1 project, got %+v", got)
	}
	if got[0].Type != "extension" || got[0].EstimatedTime != "30-45 minutos" {
		t.Errorf("unexpected extension: %+v", got[0])
	}
	if got[2].Type != "cultural_project" || got[2].EstimatedTime != "2-3 horas" {
		t.Errorf("unexpected project: %+v", got[2])
	}
}

func TestSuggestionsCapped(t *testing.T) {
	search := &fakeSearch{items: []scraper.Item{
		{Title: "One", URL: "https://a.com/1", RelevanceScore: 0.9},
		{Title: "Two", URL: "https://a.com/2", RelevanceScore: 0.8},
		{Title: "Three", URL: "https://a.com/3", RelevanceScore: 0.8},
	}}
	e := testEnricher(t, search, nil)

	got := e.Suggestions(context.Background(), "variables, functions, lists and machine learning", Progress{})
	if len(got) != 5 {
		t.Fatalf("expected 5 suggestions, got %d", len(got))
	}
	if got[3].Title != "Calculadora de propinas mexicanas" {
		t.Errorf("expected projects after extensions, got %+v", got[3])
	}
}

func TestSuggestionThresholdOption(t *testing.T) {
	search := &fakeSearch{items: []scraper.Item{{Title: "x", URL: "https://a.com", RelevanceScore: 0.8}}}
	e := testEnricher(t, search, nil, WithSuggestionThreshold(0.85))
	if got := e.Suggestions(context.Background(), "recursion", Progress{}); len(got) != 0 {
		t.Errorf("expected nothing above 0.85, got %+v", got)
	}
}

func TestStudentLevel(t *testing.T) {
	tests := []struct {
		p    Progress
		want classify.Difficulty
	}{
		{Progress{CompletedLessons: 4, AverageScore: 95}, classify.Beginner},
		{Progress{CompletedLessons: 20, AverageScore: 65}, classify.Beginner},
		{Progress{CompletedLessons: 10, AverageScore: 90}, classify.Intermediate},
		{Progress{CompletedLessons: 20, AverageScore: 80}, classify.Intermediate},
		{Progress{CompletedLessons: 15, AverageScore: 85}, classify.Advanced},
	}
	for _, tt := range tests {
		if got := StudentLevel(tt.p); got != tt.want {
			t.Errorf("StudentLevel(%+v) = %s, want %s", tt.p, got, tt.want)
		}
	}
}

func TestAdaptations(t *testing.T) {
	tests := []struct {
		topic string
		title string
	}{
		{"Variables", "Variables con nombres mexicanos"},
		{"listas", "Lista de estados mexicanos"},
		{"ML", "Clasificador de comida mexicana"},
		{"recursion", ""},
	}
	for _, tt := range tests {
		got := Adaptations(tt.topic, LanguageSpanish)
		if tt.title == "" {
			if len(got) != 0 {
				t.Errorf("Adaptations(%q): expected none, got %+v", tt.topic, got)
			}
			continue
		}
		if len(got) != 1 || got[0].Title != tt.title {
			t.Errorf("Adaptations(%q) = %+v, want %q", tt.topic, got, tt.title)
		}
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{90, "90 minutos"},
		{120, "2 horas 0 minutos"},
		{205, "3 horas 25 minutos"},
	}
	for _, tt := range tests {
		if got := FormatMinutes(tt.in); got != tt.want {
			t.Errorf("FormatMinutes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

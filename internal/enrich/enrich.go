// Package enrich turns a curriculum topic into an age-appropriate bundle of
// tutorials, examples and exercises with cultural adaptations, a difficulty
// progression and a learning-time estimate.
package enrich

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ScientiaCapital/claude-education-platform/internal/cache"
	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
	"github.com/ScientiaCapital/claude-education-platform/internal/scraper"
)

const (
	LanguageSpanish = "spanish"
	LanguageEnglish = "english"

	topicSearchSuffix    = " programming tutorial beginner"
	topicSearchResults   = 15
	defaultConcurrency   = 3
	sourceTypeEnrichment = "enrichment"
)

// Searcher finds scored educational resources. *scraper.Scraper implements it.
type Searcher interface {
	Search(ctx context.Context, topic string, maxResults int) []scraper.Item
}

// SourceStore persists finished enrichments. *cache.Store implements it.
type SourceStore interface {
	SaveResearchSource(ctx context.Context, r cache.ResearchSource) error
}

// Resource is a search result that passed the age filter.
type Resource struct {
	Title          string               `json:"title"`
	URL            string               `json:"url"`
	Description    string               `json:"description"`
	RelevanceScore float64              `json:"relevance_score"`
	EstimatedType  classify.ContentType `json:"estimated_type"`
	Difficulty     classify.Difficulty  `json:"difficulty"`
}

// Topic is the enrichment of one curriculum topic. Error is set when the
// topic could not be enriched; the other fields are then partial.
type Topic struct {
	ID                    string       `json:"id,omitempty"`
	Topic                 string       `json:"topic"`
	AgeGroup              string       `json:"age_group"`
	Language              string       `json:"language"`
	Tutorials             []Resource   `json:"tutorials"`
	Examples              []Resource   `json:"examples"`
	Exercises             []Resource   `json:"exercises"`
	CulturalAdaptations   []Adaptation `json:"cultural_adaptations"`
	DifficultyProgression []Stage      `json:"difficulty_progression"`
	LearningMinutes       int          `json:"learning_minutes"`
	EstimatedLearningTime string       `json:"estimated_learning_time"`
	Error                 string       `json:"error,omitempty"`
}

// Resources returns every kept resource.
func (t Topic) Resources() []Resource {
	out := make([]Resource, 0, len(t.Tutorials)+len(t.Examples)+len(t.Exercises))
	out = append(out, t.Tutorials...)
	out = append(out, t.Examples...)
	return append(out, t.Exercises...)
}

type Option func(*Enricher)

func WithLogger(l *slog.Logger) Option {
	return func(e *Enricher) { e.log = l }
}

// WithConcurrency bounds how many topics EnrichTopics processes at once.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithSuggestionThreshold sets the minimum relevance of extension suggestions.
func WithSuggestionThreshold(t float64) Option {
	return func(e *Enricher) {
		if t > 0 {
			e.suggestThreshold = t
		}
	}
}

type Enricher struct {
	search           Searcher
	store            SourceStore
	concurrency      int
	suggestThreshold float64
	newID            func() string
	log              *slog.Logger
}

// New builds an Enricher. store may be nil, enrichments are then not saved.
func New(search Searcher, store SourceStore, opts ...Option) *Enricher {
	e := &Enricher{
		search:           search,
		store:            store,
		concurrency:      defaultConcurrency,
		suggestThreshold: defaultSuggestionThreshold,
		newID:            uuid.NewString,
		log:              slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnrichTopic searches for material on topic, keeps what suits ageGroup and
// adds the cultural and pacing information. The result is saved as a
// research source when a store is configured.
func (e *Enricher) EnrichTopic(ctx context.Context, topic, ageGroup, language string) Topic {
	if ageGroup == "" {
		ageGroup = classify.AgeGroupYoung
	}
	if language == "" {
		language = LanguageSpanish
	}
	e.log.Info("enriching curriculum topic", "topic", topic, "age_group", ageGroup)

	t := Topic{
		Topic:     topic,
		AgeGroup:  ageGroup,
		Language:  language,
		Tutorials: []Resource{},
		Examples:  []Resource{},
		Exercises: []Resource{},
	}
	if err := ctx.Err(); err != nil {
		t.Error = err.Error()
		return t
	}

	items := e.search.Search(ctx, topic+topicSearchSuffix, topicSearchResults)
	categorize(&t, items)
	t.CulturalAdaptations = Adaptations(topic, language)
	t.DifficultyProgression = Progression(topic, ageGroup)
	t.LearningMinutes = LearningMinutes(len(t.Tutorials), len(t.Examples), len(t.Exercises), ageGroup)
	t.EstimatedLearningTime = FormatMinutes(t.LearningMinutes)

	if err := ctx.Err(); err != nil {
		t.Error = err.Error()
		return t
	}
	e.save(ctx, &t)
	e.log.Info("enriched topic", "topic", topic, "tutorials", len(t.Tutorials), "examples", len(t.Examples), "exercises", len(t.Exercises))
	return t
}

func categorize(t *Topic, items []scraper.Item) {
	for _, it := range items {
		d := classify.EstimateDifficulty(it.Title, it.Description)
		if !classify.SuitableForAge(d, t.AgeGroup) {
			continue
		}
		r := Resource{
			Title:          it.Title,
			URL:            it.URL,
			Description:    it.Description,
			RelevanceScore: it.RelevanceScore,
			EstimatedType:  it.EstimatedType,
			Difficulty:     d,
		}
		title := strings.ToLower(it.Title)
		switch {
		case it.EstimatedType == classify.Tutorial:
			t.Tutorials = append(t.Tutorials, r)
		case it.EstimatedType == classify.Example:
			t.Examples = append(t.Examples, r)
		case strings.Contains(title, "exercise") || strings.Contains(title, "practice"):
			t.Exercises = append(t.Exercises, r)
		}
	}
	for _, list := range [][]Resource{t.Tutorials, t.Examples, t.Exercises} {
		slices.SortStableFunc(list, byRelevance)
	}
}

func byRelevance(a, b Resource) int {
	return cmp.Compare(b.RelevanceScore, a.RelevanceScore)
}

// save is best effort: a failed write is logged and the enrichment is still returned.
func (e *Enricher) save(ctx context.Context, t *Topic) {
	if e.store == nil {
		return
	}
	t.ID = e.newID()
	content, err := json.Marshal(t)
	if err != nil {
		e.log.Error("encoding enrichment", "topic", t.Topic, "err", err)
		return
	}
	src := cache.ResearchSource{
		ID:         t.ID,
		Topic:      t.Topic,
		SourceType: sourceTypeEnrichment,
		Title:      fmt.Sprintf("%s (%s, %s)", t.Topic, t.AgeGroup, t.Language),
		Content:    content,
		Relevance:  meanRelevance(t.Resources()),
	}
	if err := e.store.SaveResearchSource(ctx, src); err != nil {
		e.log.Error("saving enriched content", "topic", t.Topic, "err", err)
		return
	}
	e.log.Debug("saved enriched content", "topic", t.Topic, "id", t.ID)
}

func meanRelevance(rs []Resource) float64 {
	if len(rs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rs {
		sum += r.RelevanceScore
	}
	return sum / float64(len(rs))
}

// EnrichTopics enriches every topic with at most the configured number in
// flight. Results keep the order of topics. A panic while enriching one
// topic is recovered into that topic's Error. progress, if non-nil, is
// called once per finished topic from the worker goroutine.
func (e *Enricher) EnrichTopics(ctx context.Context, topics []string, ageGroup, language string, progress func(Topic)) []Topic {
	e.log.Info("enriching topics", "count", len(topics), "age_group", ageGroup)

	results := make([]Topic, len(topics))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i, topic := range topics {
		wg.Add(1)
		go func(i int, topic string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = e.enrichRecovering(ctx, topic, ageGroup, language)
			if progress != nil {
				progress(results[i])
			}
		}(i, topic)
	}
	wg.Wait()

	var ok, tutorials int
	for _, r := range results {
		if r.Error == "" {
			ok++
		}
		tutorials += len(r.Tutorials)
	}
	e.log.Info("enrichment complete", "succeeded", ok, "total", len(topics), "tutorials", tutorials)
	return results
}

func (e *Enricher) enrichRecovering(ctx context.Context, topic, ageGroup, language string) (t Topic) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("enrichment panicked", "topic", topic, "panic", r)
			t = Topic{Topic: topic, AgeGroup: ageGroup, Language: language, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return e.EnrichTopic(ctx, topic, ageGroup, language)
}

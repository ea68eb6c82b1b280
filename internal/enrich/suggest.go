package enrich

import (
	"context"
	"strings"

	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
)

const (
	defaultSuggestionThreshold = 0.7
	maxSuggestions             = 5
	suggestionSearchSuffix     = " next steps advanced"
)

// Progress summarizes how far a student has come.
type Progress struct {
	CompletedLessons int
	AverageScore     float64
}

// StudentLevel places a student by completed lessons and average score.
func StudentLevel(p Progress) classify.Difficulty {
	switch {
	case p.CompletedLessons < 5 || p.AverageScore < 70:
		return classify.Beginner
	case p.CompletedLessons < 15 || p.AverageScore < 85:
		return classify.Intermediate
	default:
		return classify.Advanced
	}
}

type Suggestion struct {
	Title           string              `json:"title"`
	URL             string              `json:"url,omitempty"`
	Type            string              `json:"type"`
	Description     string              `json:"description,omitempty"`
	Difficulty      classify.Difficulty `json:"difficulty,omitempty"`
	CulturalElement string              `json:"cultural_element,omitempty"`
	WhySuggested    string              `json:"why_suggested"`
	EstimatedTime   string              `json:"estimated_time"`
}

type project struct {
	keyword         string
	title           string
	description     string
	culturalElement string
}

var culturalProjects = []project{
	{"variables", "Calculadora de propinas mexicanas", "Crear una calculadora que calcule propinas en restaurantes mexicanos", "Usar porcentajes de propina comunes en México"},
	{"functions", "Conversor de peso a dólar", "Función que convierte pesos mexicanos a dólares", "Usar tipos de cambio reales"},
	{"lists", "Organizador de festivales mexicanos", "Lista y organiza festivales por estado", "Usar festivales reales de cada estado"},
	{"machine learning", "Reconocedor de música regional", "Clasificar diferentes géneros de música mexicana", "Mariachi, norteño, banda, ranchera"},
}

// Suggestions proposes at most five follow-ups to lesson: highly relevant
// extension material first, then cultural projects whose keyword appears in
// the lesson name.
func (e *Enricher) Suggestions(ctx context.Context, lesson string, p Progress) []Suggestion {
	e.log.Info("finding enrichment suggestions", "lesson", lesson, "level", StudentLevel(p))

	out := []Suggestion{}
	for _, it := range e.search.Search(ctx, lesson+suggestionSearchSuffix, maxSuggestions) {
		if it.RelevanceScore <= e.suggestThreshold {
			continue
		}
		out = append(out, Suggestion{
			Title:         it.Title,
			URL:           it.URL,
			Type:          "extension",
			Difficulty:    classify.EstimateDifficulty(it.Title, it.Description),
			WhySuggested:  "Builds on " + lesson + " concepts",
			EstimatedTime: "30-45 minutos",
		})
	}
	out = append(out, CulturalProjects(lesson)...)

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// CulturalProjects returns the projects whose keyword occurs in lesson.
func CulturalProjects(lesson string) []Suggestion {
	name := strings.ToLower(lesson)
	var out []Suggestion
	for _, p := range culturalProjects {
		if !strings.Contains(name, p.keyword) {
			continue
		}
		out = append(out, Suggestion{
			Title:           p.title,
			Type:            "cultural_project",
			Description:     p.description,
			CulturalElement: p.culturalElement,
			WhySuggested:    "Aplica conceptos de " + lesson + " con contexto mexicano",
			EstimatedTime:   "2-3 horas",
		})
	}
	return out
}

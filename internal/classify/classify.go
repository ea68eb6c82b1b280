package classify

import (
	"fmt"
	"strings"
)

// ContentType is the estimated kind of a piece of educational content.
type ContentType string

const (
	Course        ContentType = "course"
	Documentation ContentType = "documentation"
	Tutorial      ContentType = "tutorial"
	Example       ContentType = "example"
	General       ContentType = "general"
)

// Difficulty is the estimated level of a piece of content.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
	Unknown      Difficulty = "unknown"
)

// Age groups with restricted difficulty.
const (
	AgeGroupYoung = "10-16"
	AgeGroupTeen  = "14-18"
)

type rule[T any] struct {
	value    T
	keywords []string
}

// First match wins, so the order of these rules matters.
var typeRules = []rule[ContentType]{
	{Course, []string{"course", "class", "curriculum"}},
	{Documentation, []string{"docs", "documentation", "reference", "api"}},
	{Tutorial, []string{"tutorial", "guide", "how-to", "walkthrough"}},
	{Example, []string{"example", "demo", "sample"}},
}

var difficultyRules = []rule[Difficulty]{
	{Beginner, []string{"beginner", "basic", "intro", "getting started", "fundamentals", "first", "simple"}},
	{Advanced, []string{"advanced", "expert", "complex", "deep dive", "master", "professional", "optimization"}},
	{Intermediate, []string{"intermediate", "next level", "beyond basics"}},
}

func firstMatch[T any](title, description string, rules []rule[T], fallback T) T {
	text := strings.ToLower(title + " " + description)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.value
			}
		}
	}
	return fallback
}

// EstimateType guesses the content type from title and description.
// Returns General when nothing matches.
func EstimateType(title, description string) ContentType {
	return firstMatch(title, description, typeRules, General)
}

// EstimateDifficulty guesses the difficulty from title and description.
// Returns Unknown when nothing matches.
func EstimateDifficulty(title, description string) Difficulty {
	return firstMatch(title, description, difficultyRules, Unknown)
}

// SuitableForAge reports whether content of difficulty d fits the age group.
// Groups other than the two restricted ones accept every level.
func SuitableForAge(d Difficulty, ageGroup string) bool {
	switch ageGroup {
	case AgeGroupYoung:
		return d == Beginner || d == Unknown
	case AgeGroupTeen:
		return d == Beginner || d == Intermediate || d == Unknown
	default:
		return true
	}
}

// ParseContentType maps a CLI value to a scrape content type. Only the three
// types with dedicated scrape parameters are accepted.
func ParseContentType(s string) (ContentType, error) {
	switch ct := ContentType(strings.ToLower(strings.TrimSpace(s))); ct {
	case Tutorial, Documentation, Course:
		return ct, nil
	case "":
		return Tutorial, nil
	default:
		return "", fmt.Errorf("unknown content type %q (valid: tutorial, documentation, course)", s)
	}
}

// ParseDifficulty normalizes a free-form difficulty string.
func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case Beginner, Intermediate, Advanced:
		return d
	default:
		return Unknown
	}
}

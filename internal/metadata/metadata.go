// Package metadata builds the analysis prompt for a scraped page and turns
// the generated answer into structured learning metadata.
package metadata

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
)

// Metadata is what the analysis extracts from one page.
type Metadata struct {
	LearningObjectives []string `json:"learning_objectives"`
	Prerequisites      []string `json:"prerequisites"`
	DifficultyLevel    string   `json:"difficulty_level"`
	EstimatedTime      string   `json:"estimated_time,omitempty"`
	CodeExamples       []string `json:"code_examples"`
	RelatedTopics      []string `json:"related_topics"`
	KeyConcepts        []string `json:"key_concepts"`
	TargetAudience     string   `json:"target_audience,omitempty"`
}

// Kind records which stage of the parser produced the metadata.
type Kind int

const (
	Empty     Kind = iota // nothing usable, defaults only
	Parsed                // strict JSON from the answer
	Heuristic             // recovered line by line from free text
)

func (k Kind) String() string {
	switch k {
	case Parsed:
		return "parsed"
	case Heuristic:
		return "heuristic"
	default:
		return "empty"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "parsed":
		*k = Parsed
	case "heuristic":
		*k = Heuristic
	default:
		*k = Empty
	}
	return nil
}

// Default is the metadata used when analysis fails.
func Default() Metadata {
	return Metadata{
		LearningObjectives: []string{},
		Prerequisites:      []string{},
		DifficultyLevel:    string(classify.Unknown),
		CodeExamples:       []string{},
		RelatedTopics:      []string{},
		KeyConcepts:        []string{},
	}
}

const truncationNote = "\n\n[Content truncated for analysis]"

// Truncate cuts content to at most limit bytes, on a rune boundary, and
// marks the cut.
func Truncate(content string, limit int) string {
	if limit <= 0 || len(content) <= limit {
		return content
	}
	cut := limit
	for cut > 0 && !utf8RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + truncationNote
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

const promptTemplate = `Analyze this %s content and extract educational metadata.
Respond in JSON format with the following structure:

{
    "learning_objectives": ["objective1", "objective2"],
    "prerequisites": ["prerequisite1", "prerequisite2"],
    "difficulty_level": "beginner|intermediate|advanced",
    "estimated_time": "X minutes/hours",
    "code_examples": ["example1", "example2"],
    "related_topics": ["topic1", "topic2"],
    "key_concepts": ["concept1", "concept2"],
    "target_audience": "description of who this is for"
}

Content to analyze:
%s

Educational Analysis (JSON only):`

// Prompt builds the analysis request for already truncated content.
func Prompt(content, contentType string) string {
	return fmt.Sprintf(promptTemplate, contentType, content)
}

// lenient accepts the shapes models actually return: single strings where
// lists are expected and numbers where strings are expected.
type lenient struct {
	LearningObjectives any `json:"learning_objectives"`
	Prerequisites      any `json:"prerequisites"`
	DifficultyLevel    any `json:"difficulty_level"`
	EstimatedTime      any `json:"estimated_time"`
	CodeExamples       any `json:"code_examples"`
	RelatedTopics      any `json:"related_topics"`
	KeyConcepts        any `json:"key_concepts"`
	TargetAudience     any `json:"target_audience"`
}

// Parse reads the generated answer. It first looks for a JSON object
// spanning the first '{' to the last '}', and falls back to heuristics when
// that is missing or malformed. It never fails.
func Parse(text string) (Metadata, Kind) {
	if strings.TrimSpace(text) == "" {
		return Default(), Empty
	}
	if m, ok := parseJSON(text); ok {
		return m, Parsed
	}
	return parseHeuristic(text), Heuristic
}

func parseJSON(text string) (Metadata, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Metadata{}, false
	}
	var raw lenient
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Metadata{}, false
	}
	m := Default()
	m.LearningObjectives = toStrings(raw.LearningObjectives)
	m.Prerequisites = toStrings(raw.Prerequisites)
	m.DifficultyLevel = string(classify.ParseDifficulty(toString(raw.DifficultyLevel)))
	m.EstimatedTime = toString(raw.EstimatedTime)
	m.CodeExamples = toStrings(raw.CodeExamples)
	m.RelatedTopics = toStrings(raw.RelatedTopics)
	m.KeyConcepts = toStrings(raw.KeyConcepts)
	m.TargetAudience = toString(raw.TargetAudience)
	return m, true
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func toStrings(v any) []string {
	out := []string{}
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(x); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var (
	objectivesRe = regexp.MustCompile(`(?i)objectives?`)
	prereqRe     = regexp.MustCompile(`(?i)prerequisites?`)
	topicsRe     = regexp.MustCompile(`(?i)topics?`)
	bulletRe     = regexp.MustCompile(`^[\s\-\*•\d\.]+`)
	timeRe       = regexp.MustCompile(`(?i)(\d+)\s*(minutes?|hours?|mins?|hrs?)`)
	fencedRe     = regexp.MustCompile("(?s)```\\w*\\n(.*?)\\n```")
	inlineRe     = regexp.MustCompile("`([^`\n]+)`")
)

const (
	maxListItems    = 5
	maxCodeExamples = 10
)

func parseHeuristic(text string) Metadata {
	m := Default()
	m.LearningObjectives = extractList(text, objectivesRe)
	m.Prerequisites = extractList(text, prereqRe)
	m.DifficultyLevel = string(extractDifficulty(text))
	m.EstimatedTime = extractTime(text)
	m.CodeExamples = extractCode(text)
	m.RelatedTopics = extractList(text, topicsRe)
	m.TargetAudience = "general"
	return m
}

// extractList collects bullet lines that mention the pattern.
func extractList(text string, pattern *regexp.Regexp) []string {
	items := []string{}
	for _, line := range strings.Split(text, "\n") {
		if !pattern.MatchString(line) || !strings.ContainsAny(line, "-*•") {
			continue
		}
		item := strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		if item == "" {
			continue
		}
		items = append(items, item)
		if len(items) == maxListItems {
			break
		}
	}
	return items
}

func extractDifficulty(text string) classify.Difficulty {
	lower := strings.ToLower(text)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	switch {
	case has("beginner", "basic", "intro", "getting started"):
		return classify.Beginner
	case has("advanced", "expert", "complex"):
		return classify.Advanced
	case has("intermediate", "medium"):
		return classify.Intermediate
	default:
		return classify.Unknown
	}
}

func extractTime(text string) string {
	m := timeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + " " + m[2]
}

// extractCode returns fenced blocks longer than 10 chars followed by inline
// spans longer than 5, at most 10 in total.
func extractCode(text string) []string {
	examples := []string{}
	for _, m := range fencedRe.FindAllStringSubmatch(text, -1) {
		if block := strings.TrimSpace(m[1]); len(block) > 10 {
			examples = append(examples, block)
		}
	}
	rest := fencedRe.ReplaceAllString(text, "")
	for _, m := range inlineRe.FindAllStringSubmatch(rest, -1) {
		if code := strings.TrimSpace(m[1]); len(code) > 5 {
			examples = append(examples, code)
		}
	}
	if len(examples) > maxCodeExamples {
		examples = examples[:maxCodeExamples]
	}
	return examples
}

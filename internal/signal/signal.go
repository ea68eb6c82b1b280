// Package signal scores how useful a piece of web content is for teaching.
package signal

import (
	"math"
	"net/url"
	"strings"
)

// Input holds the data needed to score a search result or page.
type Input struct {
	Title       string
	Description string
	URL         string
}

// Breakdown shows how each component contributed to the final score.
type Breakdown struct {
	Indicators []string // tutorial indicators found, 0.1 each
	Coding     float64  // 0.2 when any coding term appears
	Site       float64  // 0.3 for a known educational site
	Learning   []string // learning keywords found, 0.05 each
	Final      float64
}

const (
	indicatorWeight = 0.1
	codingWeight    = 0.2
	siteWeight      = 0.3
	learningWeight  = 0.05
)

// TutorialIndicators mark text that reads like teaching material.
var TutorialIndicators = []string{
	"tutorial", "guide", "how-to", "step-by-step", "learn",
	"course", "lesson", "documentation", "docs", "example",
}

// CodePlatforms host code rather than prose.
var CodePlatforms = []string{
	"github.com", "stackoverflow.com", "codepen.io",
	"repl.it", "codesandbox.io", "jupyter.org",
}

// EducationalSites are learning platforms trusted across domains.
var EducationalSites = []string{
	"coursera.org", "edx.org", "udemy.com", "khanacademy.org",
	"freecodecamp.org", "codecademy.com", "pluralsight.com",
}

var codingTerms = []string{"code", "programming", "python", "javascript", "tutorial"}

var learningKeywords = []string{"learn", "course", "lesson", "guide", "example", "practice"}

// Relevance returns the educational relevance of the input in [0, 1].
func Relevance(in Input) float64 {
	return RelevanceWithBreakdown(in).Final
}

// RelevanceWithBreakdown computes the relevance with component details.
func RelevanceWithBreakdown(in Input) Breakdown {
	text := strings.ToLower(in.Title + " " + in.Description)

	var b Breakdown
	b.Indicators = matches(text, TutorialIndicators)
	if len(matches(text, codingTerms)) > 0 {
		b.Coding = codingWeight
	}
	if IsEducationalSite(in.URL) {
		b.Site = siteWeight
	}
	b.Learning = matches(text, learningKeywords)

	raw := float64(len(b.Indicators))*indicatorWeight + b.Coding + b.Site +
		float64(len(b.Learning))*learningWeight
	b.Final = math.Round(min(max(raw, 0), 1)*1000) / 1000
	return b
}

func matches(text string, terms []string) []string {
	var found []string
	for _, t := range terms {
		if strings.Contains(text, t) {
			found = append(found, t)
		}
	}
	return found
}

// IsEducationalSite reports whether the URL's host is, or is a subdomain
// of, a known educational site.
func IsEducationalSite(rawURL string) bool {
	return hostIn(rawURL, EducationalSites)
}

// IsCodePlatform reports whether the URL points at a code hosting or Q&A site.
func IsCodePlatform(rawURL string) bool {
	return hostIn(rawURL, CodePlatforms)
}

func hostIn(rawURL string, domains []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ScientiaCapital/claude-education-platform/internal/signal"
)

const maxRelated = 5

var markdownLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// DiscoverRelated returns up to five links from markdown whose anchor text
// reads like teaching material. Links leaving the base host are kept only
// when they point at a known educational site.
func DiscoverRelated(markdown, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, m := range markdownLink.FindAllStringSubmatch(markdown, -1) {
		text, href := strings.ToLower(m[1]), strings.TrimSpace(m[2])
		// Drop an optional link title: [x](/path "Title").
		if i := strings.IndexByte(href, ' '); i > 0 {
			href = href[:i]
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		// Protocol-relative links (//host/path) change host without a scheme.
		if !strings.EqualFold(abs.Hostname(), base.Hostname()) && !signal.IsEducationalSite(abs.String()) {
			continue
		}
		if !containsAny(text, signal.TutorialIndicators) {
			continue
		}

		abs.Fragment = ""
		u := abs.String()
		if u == baseURL || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) == maxRelated {
			break
		}
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

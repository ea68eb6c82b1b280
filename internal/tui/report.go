package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/ScientiaCapital/claude-education-platform/internal/cache"
	"github.com/ScientiaCapital/claude-education-platform/internal/enrich"
	"github.com/ScientiaCapital/claude-education-platform/internal/kb"
	"github.com/ScientiaCapital/claude-education-platform/internal/metadata"
	"github.com/ScientiaCapital/claude-education-platform/internal/scraper"
)

// RenderScrape summarizes a scrape result.
func RenderScrape(res scraper.Result, width int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(res.SourceURL))
	b.WriteString("\n")
	if res.Error != "" {
		b.WriteString(errorStyle.Render("Error: " + res.Error))
		return b.String()
	}

	status := fmt.Sprintf("%s · %d pages · $%.4f", res.ContentType, res.PagesScraped, res.Cost)
	if res.Cached {
		status += " · cached"
	}
	b.WriteString(dimStyle.Render(status))
	b.WriteString("\n")

	for _, p := range res.Content {
		title := p.Title
		if title == "" {
			title = p.URL
		}
		b.WriteString("  " + itemTitleStyle.Render(truncateStr(title, width-4)) + " " +
			linkStyle.Render(fmt.Sprintf("(%d chars)", len([]rune(p.Markdown)))) + "\n")
	}

	b.WriteString(renderMetadata(res.Metadata, res.MetadataKind, width))
	return b.String()
}

func renderMetadata(m metadata.Metadata, kind metadata.Kind, width int) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Learning metadata"))
	b.WriteString(" " + dimStyle.Render("("+kind.String()+")") + "\n")
	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(fmt.Sprintf("  %-20s %s\n", label, bodyStyle.Render(value)))
	}
	list := func(label string, values []string) {
		if len(values) == 0 {
			return
		}
		field(label, truncateStr(strings.Join(values, ", "), width-24))
	}
	field("Difficulty", m.DifficultyLevel)
	field("Estimated time", m.EstimatedTime)
	field("Audience", m.TargetAudience)
	list("Objectives", m.LearningObjectives)
	list("Prerequisites", m.Prerequisites)
	list("Key concepts", m.KeyConcepts)
	list("Related topics", m.RelatedTopics)
	if n := len(m.CodeExamples); n > 0 {
		field("Code examples", fmt.Sprintf("%d", n))
	}
	return b.String()
}

// RenderTopic shows one enriched topic.
func RenderTopic(t enrich.Topic, width int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s · %s · %s", t.Topic, t.AgeGroup, t.Language)))
	b.WriteString("\n")
	if t.Error != "" {
		b.WriteString(errorStyle.Render("Error: " + t.Error))
		return b.String()
	}
	b.WriteString(dimStyle.Render("Tiempo estimado: " + t.EstimatedLearningTime))
	b.WriteString("\n")

	section := func(name string, rs []enrich.Resource) {
		if len(rs) == 0 {
			return
		}
		b.WriteString(sectionStyle.Render(fmt.Sprintf("%s (%d)", name, len(rs))) + "\n")
		for _, r := range rs {
			b.WriteString("  " + itemTitleStyle.Render(truncateStr(r.Title, width-10)) +
				dimStyle.Render(fmt.Sprintf(" %.2f", r.RelevanceScore)) + "\n")
			b.WriteString("    " + linkStyle.Render(truncateStr(r.URL, width-4)) + "\n")
		}
	}
	section("Tutorials", t.Tutorials)
	section("Examples", t.Examples)
	section("Exercises", t.Exercises)

	if len(t.CulturalAdaptations) > 0 {
		b.WriteString(sectionStyle.Render("Adaptaciones culturales") + "\n")
		for _, a := range t.CulturalAdaptations {
			b.WriteString("  " + itemTitleStyle.Render(a.Title) + " " + dimStyle.Render("["+a.Type+"]") + "\n")
			b.WriteString("    " + bodyStyle.Render(a.Content) + "\n")
			b.WriteString("    " + dimStyle.Render(a.Explanation) + "\n")
		}
	}

	b.WriteString(sectionStyle.Render("Progresión") + "\n")
	for i, s := range t.DifficultyProgression {
		b.WriteString(fmt.Sprintf("  %d. %s %s\n", i+1, itemTitleStyle.Render(s.Level), dimStyle.Render("("+s.TimeEstimate+")")))
		b.WriteString("     " + bodyStyle.Render(s.Description) + "\n")
	}
	return b.String()
}

// RenderSuggestions lists enrichment suggestions with the student level.
func RenderSuggestions(lesson string, level string, ss []enrich.Suggestion, width int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Sugerencias para " + lesson))
	b.WriteString(" " + dimStyle.Render("(nivel: "+level+")") + "\n")
	if len(ss) == 0 {
		b.WriteString(dimStyle.Render("No suggestions found"))
		return b.String()
	}
	for i, s := range ss {
		b.WriteString(fmt.Sprintf("\n%2d. %s %s\n", i+1, itemTitleStyle.Render(truncateStr(s.Title, width-20)), itemSourceStyle.Render(s.Type)))
		if s.URL != "" {
			b.WriteString("    " + linkStyle.Render(s.URL) + "\n")
		}
		if s.Description != "" {
			b.WriteString("    " + bodyStyle.Render(s.Description) + "\n")
		}
		if s.CulturalElement != "" {
			b.WriteString("    " + bodyStyle.Render(s.CulturalElement) + "\n")
		}
		b.WriteString("    " + dimStyle.Render(s.WhySuggested+" · "+s.EstimatedTime) + "\n")
	}
	return b.String()
}

// RenderAnswer prints a generated answer followed by its sources.
func RenderAnswer(a kb.Answer, width int) string {
	var b strings.Builder
	b.WriteString(boxStyle.Width(max(width-2, 20)).Render(wrapText(a.Text, max(width-6, 16))))
	b.WriteString("\n")
	if len(a.Sources) > 0 {
		b.WriteString(sectionStyle.Render("Sources") + "\n")
		for _, h := range a.Sources {
			line := fmt.Sprintf("  %s %s", itemTitleStyle.Render(h.Chunk.Title), dimStyle.Render(fmt.Sprintf("%.3f", h.Score)))
			if h.Chunk.URL != "" {
				line += " " + linkStyle.Render(h.Chunk.URL)
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// RenderHits shows retrieved passages without an answer.
func RenderHits(hits []kb.Hit, width int) string {
	if len(hits) == 0 {
		return dimStyle.Render("Nothing relevant in the knowledge base")
	}
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("%2d. %s %s\n    %s", i+1,
			itemTitleStyle.Render(h.Chunk.Title),
			dimStyle.Render(fmt.Sprintf("%.3f", h.Score)),
			bodyStyle.Render(truncateStr(oneLine(h.Chunk.Content), width-4)))
	}
	return strings.Join(parts, "\n\n")
}

// RenderSources lists saved research sources.
func RenderSources(srcs []cache.ResearchSource, width int) string {
	if len(srcs) == 0 {
		return dimStyle.Render("No saved research sources")
	}
	var b strings.Builder
	for _, s := range srcs {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			itemTitleStyle.Render(truncateStr(s.Title, width-30)),
			itemSourceStyle.Render(s.SourceType),
			dimStyle.Render(fmt.Sprintf("%.2f · %s", s.Relevance, relativeTime(s.CreatedAt)))))
		b.WriteString("  " + dimStyle.Render(s.ID) + "\n")
	}
	return b.String()
}

// RenderCacheSummary shows entry counts per tier and hit statistics.
func RenderCacheSummary(s cache.Summary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Cache") + "\n")
	tier := func(name string, counts map[string]int) {
		total := 0
		var parts []string
		for _, k := range slices.Sorted(maps.Keys(counts)) {
			total += counts[k]
			parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
		}
		b.WriteString(fmt.Sprintf("  %-8s %4d  %s\n", name, total, dimStyle.Render(strings.Join(parts, " "))))
	}
	tier("memory", s.Memory)
	if s.DurableAvailable {
		tier("durable", s.Durable)
	} else {
		b.WriteString(fmt.Sprintf("  %-8s %s\n", "durable", dimStyle.Render("unavailable")))
	}
	tier("files", s.Files)
	b.WriteString(renderCacheStats(s.Stats))
	return b.String()
}

func renderCacheStats(st cache.Stats) string {
	return fmt.Sprintf("  hits %d · misses %d · saves %d · hit rate %.1f%% · saved $%.4f\n",
		st.Hits, st.Misses, st.Saves, st.HitRate()*100, st.EstimatedSavings())
}

// RenderReport prints scraper, limiter and retry statistics.
func RenderReport(r scraper.Report) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Statistics") + "\n")
	s := r.Scraper
	b.WriteString(fmt.Sprintf("  scrapes %d · cache hits %d · pages %d · searches %d · errors %d · cost $%.4f\n",
		s.TotalScrapes, s.CacheHits, s.PagesScraped, s.Searches, s.Errors, s.TotalCost))
	b.WriteString(renderCacheStats(r.Cache))
	for _, name := range slices.Sorted(maps.Keys(r.Limiter)) {
		ls := r.Limiter[name]
		if ls.TotalRequests == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  %-10s %d requests · %.0f%% limited · avg wait %s\n",
			name, ls.TotalRequests, ls.LimitedPercent(), ls.AvgWait().Round(time.Millisecond)))
	}
	if rt := r.Retry; rt.TotalAttempts > 0 {
		b.WriteString(fmt.Sprintf("  retry      %d attempts · %.0f%% success · %d after retry\n",
			rt.TotalAttempts, rt.SuccessRate()*100, rt.SuccessfulRetries))
	}
	return b.String()
}

func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	var out []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len([]rune(line))+1+len([]rune(w)) > width {
				out = append(out, line)
				line = w
			} else {
				line += " " + w
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

package kb

import (
	"strings"

	"github.com/ScientiaCapital/claude-education-platform/internal/enrich"
	"github.com/ScientiaCapital/claude-education-platform/internal/scraper"
)

// FromScrape turns every page of a successful scrape into a document.
func FromScrape(res scraper.Result) []Document {
	if res.Error != "" {
		return nil
	}
	docs := make([]Document, 0, len(res.Content))
	for _, p := range res.Content {
		title := p.Title
		if title == "" {
			title = p.URL
		}
		docs = append(docs, Document{
			Source:  "scrape:" + string(res.ContentType),
			Title:   title,
			URL:     p.URL,
			Content: p.Markdown,
		})
	}
	return docs
}

// FromSearch uses the title and description of each search item.
func FromSearch(items []scraper.Item) []Document {
	docs := make([]Document, 0, len(items))
	for _, it := range items {
		docs = append(docs, Document{
			Source:  it.Source,
			Title:   it.Title,
			URL:     it.URL,
			Content: strings.TrimSpace(it.Title + "\n\n" + it.Description),
		})
	}
	return docs
}

// FromEnrichment makes one document of the cultural adaptations and
// progression of an enriched topic.
func FromEnrichment(t enrich.Topic) []Document {
	if t.Error != "" {
		return nil
	}
	var b strings.Builder
	for _, a := range t.CulturalAdaptations {
		b.WriteString(a.Title + "\n" + a.Content + "\n" + a.Explanation + "\n\n")
	}
	for _, s := range t.DifficultyProgression {
		b.WriteString(s.Level + ": " + s.Description + " (" + s.TimeEstimate + ")\n")
		b.WriteString(strings.Join(s.Activities, ", ") + "\n\n")
	}
	if b.Len() == 0 {
		return nil
	}
	return []Document{{
		Source:  "enrichment",
		Title:   t.Topic + " (" + t.AgeGroup + ")",
		Content: b.String(),
	}}
}

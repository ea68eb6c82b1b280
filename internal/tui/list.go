package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ScientiaCapital/claude-education-platform/internal/scraper"
)

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

func renderItem(it scraper.Item, rank int, width int) string {
	if width < 20 {
		width = 80
	}

	title := itemTitleStyle.Render(fmt.Sprintf("%2d. %s", rank, truncateStr(it.Title, width-5)))
	meta := "    " + itemSourceStyle.Render(it.Source) +
		dimStyle.Render(fmt.Sprintf(" · %.2f · %s · %s", it.RelevanceScore, it.EstimatedType, it.Difficulty))
	link := "    " + linkStyle.Render(truncateStr(it.URL, width-4))

	lines := []string{title, meta, link}
	if it.Description != "" {
		lines = append(lines, "    "+bodyStyle.Render(truncateStr(oneLine(it.Description), width-4)))
	}
	return strings.Join(lines, "\n")
}

// RenderItems lists ranked search items, numbered from 1.
func RenderItems(items []scraper.Item, width int) string {
	if len(items) == 0 {
		return dimStyle.Render("No educational resources found")
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = renderItem(it, i+1, width)
	}
	return strings.Join(parts, "\n\n")
}

func truncateStr(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

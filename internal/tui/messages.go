package tui

import "github.com/ScientiaCapital/claude-education-platform/internal/enrich"

type topicDoneMsg struct {
	topic enrich.Topic
}

type allDoneMsg struct {
	results []enrich.Topic
}

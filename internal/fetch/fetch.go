// Package fetch retrieves a single web page as markdown, either through the
// Firecrawl scrape API or by fetching and converting the HTML directly.
package fetch

import (
	"context"
	"errors"
	"time"
)

var ErrNoContent = errors.New("no content extracted")

// Request describes one page fetch. The tag filters and wait hint vary by
// content type, see RequestFor.
type Request struct {
	URL             string
	IncludeTags     []string
	ExcludeTags     []string
	WaitFor         time.Duration
	OnlyMainContent bool
}

// Page is a fetched page reduced to markdown.
type Page struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Markdown    string            `json:"markdown"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Fetcher retrieves pages. Name is the rate limiter service it draws from.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Page, error)
}

type profile struct {
	include []string
	exclude []string
	wait    time.Duration
}

var profiles = map[string]profile{
	"tutorial": {
		include: []string{"article", "main", "section", "pre", "code", "h1", "h2", "h3", "p", "ol", "ul"},
		exclude: []string{"nav", "footer", "aside", "advertisement"},
		wait:    time.Second,
	},
	"documentation": {
		include: []string{"article", "main", "section", "pre", "code", "table", "dl"},
		exclude: []string{"nav", "footer", "script", "style"},
		wait:    500 * time.Millisecond,
	},
	"course": {
		include: []string{"article", "main", "section", "video", "h1", "h2", "h3"},
		exclude: []string{"nav", "footer", "ads"},
		wait:    2 * time.Second,
	},
}

// RequestFor builds the fetch request for a content type. Unknown types
// fetch the main content without tag filters.
func RequestFor(url, contentType string) Request {
	req := Request{URL: url, OnlyMainContent: true}
	if p, ok := profiles[contentType]; ok {
		req.IncludeTags = append([]string(nil), p.include...)
		req.ExcludeTags = append([]string(nil), p.exclude...)
		req.WaitFor = p.wait
	}
	return req
}

package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const firecrawlURL = "https://api.firecrawl.dev/v1/scrape"

// Firecrawl fetches pages through the Firecrawl scrape API.
type Firecrawl struct {
	apiKey string
	url    string
	client *http.Client
}

func NewFirecrawl(apiKey string) *Firecrawl {
	return &Firecrawl{
		apiKey: apiKey,
		url:    firecrawlURL,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (f *Firecrawl) Name() string { return "firecrawl" }

type firecrawlRequest struct {
	URL                string   `json:"url"`
	Formats            []string `json:"formats"`
	OnlyMainContent    bool     `json:"onlyMainContent"`
	RemoveBase64Images bool     `json:"removeBase64Images"`
	IncludeTags        []string `json:"includeTags,omitempty"`
	ExcludeTags        []string `json:"excludeTags,omitempty"`
	WaitFor            int64    `json:"waitFor,omitempty"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string         `json:"markdown"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
}

func (f *Firecrawl) Fetch(ctx context.Context, r Request) (*Page, error) {
	body, _ := json.Marshal(firecrawlRequest{
		URL:                r.URL,
		Formats:            []string{"markdown"},
		OnlyMainContent:    r.OnlyMainContent,
		RemoveBase64Images: true,
		IncludeTags:        r.IncludeTags,
		ExcludeTags:        r.ExcludeTags,
		WaitFor:            r.WaitFor.Milliseconds(),
	})

	req, err := http.NewRequestWithContext(ctx, "POST", f.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firecrawl connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("firecrawl API %d: %s", resp.StatusCode, string(b))
	}

	var fr firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decoding firecrawl response: %w", err)
	}
	if !fr.Success && fr.Error != "" {
		return nil, fmt.Errorf("firecrawl: %s", fr.Error)
	}
	if fr.Data.Markdown == "" {
		return nil, fmt.Errorf("%s: %w", r.URL, ErrNoContent)
	}

	page := &Page{URL: r.URL, Markdown: fr.Data.Markdown, Metadata: map[string]string{}}
	for k, v := range fr.Data.Metadata {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		switch k {
		case "title":
			page.Title = s
		case "description":
			page.Description = s
		default:
			page.Metadata[k] = s
		}
	}
	return page, nil
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const exaURL = "https://api.exa.ai/search"

// Exa is the semantic search API. Results carry a generated summary as content.
type Exa struct {
	apiKey string
	url    string
	client *http.Client
}

func NewExa(apiKey string) *Exa {
	return &Exa{apiKey: apiKey, url: exaURL, client: &http.Client{Timeout: 30 * time.Second}}
}

func (e *Exa) Name() string { return "exa" }

type exaRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
	Contents   struct {
		Summary bool `json:"summary"`
	} `json:"contents"`
}

type exaResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Summary       string  `json:"summary"`
		Text          string  `json:"text"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"publishedDate"`
	} `json:"results"`
}

func (e *Exa) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	er := exaRequest{Query: query, NumResults: limit}
	er.Contents.Summary = true
	body, _ := json.Marshal(er)

	req, err := http.NewRequestWithContext(ctx, "POST", e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("exa API %d: %s", resp.StatusCode, string(b))
	}

	var xr exaResponse
	if err := json.NewDecoder(resp.Body).Decode(&xr); err != nil {
		return nil, fmt.Errorf("decoding exa response: %w", err)
	}
	results := make([]Result, 0, len(xr.Results))
	for _, r := range xr.Results {
		content := r.Summary
		if content == "" {
			content = r.Text
		}
		res := Result{Title: r.Title, URL: r.URL, Content: content, Score: r.Score, Source: "exa"}
		if t, err := time.Parse(time.RFC3339, r.PublishedDate); err == nil {
			res.Published = t
		}
		results = append(results, res)
	}
	return results, nil
}

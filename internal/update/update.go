// Package update asks GitHub whether a newer edututor release exists.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const releasesURL = "https://api.github.com/repos/ScientiaCapital/claude-education-platform/releases/latest"

// Result holds the outcome of a version check.
type Result struct {
	Current string
	Latest  string
	URL     string
}

// Newer reports whether the latest release differs from the running build.
func (r Result) Newer() bool {
	return r.Latest != "" && r.Latest != r.Current
}

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Checker queries a releases endpoint. The zero value uses the public GitHub API.
type Checker struct {
	URL    string
	Client *http.Client
}

// Check fetches the latest release tag and compares it with current.
func (c Checker) Check(ctx context.Context, current string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	endpoint := c.URL
	if endpoint == "" {
		endpoint = releasesURL
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	res := Result{Current: strings.TrimPrefix(current, "v")}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return res, fmt.Errorf("building release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return res, fmt.Errorf("checking latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return res, fmt.Errorf("checking latest release: HTTP %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return res, fmt.Errorf("decoding release: %w", err)
	}
	res.Latest = strings.TrimPrefix(rel.TagName, "v")
	res.URL = rel.HTMLURL
	return res, nil
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ScientiaCapital/claude-education-platform/internal/config"
)

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(&config.AIConfig{Provider: "claude"}, ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := New(nil, "key"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured for nil config, got %v", err)
	}
	if _, err := New(&config.AIConfig{Provider: "gemini"}, "key"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestProviderNames(t *testing.T) {
	tests := map[string]string{"claude": "anthropic", "openai": "openai", "deepseek": "deepseek"}
	for provider, want := range tests {
		g, err := New(&config.AIConfig{Provider: provider}, "key")
		if err != nil {
			t.Fatalf("New(%s): %v", provider, err)
		}
		if g.Name() != want {
			t.Errorf("%s: expected name %q, got %q", provider, want, g.Name())
		}
	}
}

func TestClaudeGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		var req claudeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 1000 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"difficulty_level\":\"beginner\"}"}]}`))
	}))
	defer srv.Close()

	c := &claudeProvider{apiKey: "secret", model: "m", maxTokens: 1000, url: srv.URL, client: srv.Client()}
	got, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != `{"difficulty_level":"beginner"}` {
		t.Errorf("unexpected text %q", got)
	}
}

func TestClaudeErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &claudeProvider{apiKey: "k", model: "m", url: srv.URL, client: srv.Client()}
	_, err := c.Generate(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status in error for retry matching, got %v", err)
	}
}

func TestChatGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"answer"}}]}`))
	}))
	defer srv.Close()

	c := &chatProvider{name: "deepseek", apiKey: "k", model: "deepseek-chat", url: srv.URL, client: srv.Client()}
	got, err := c.Generate(context.Background(), "q")
	if err != nil || got != "answer" {
		t.Errorf("expected answer, got %q (%v)", got, err)
	}
}

func TestChatEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := &chatProvider{name: "openai", url: srv.URL, client: srv.Client()}
	if _, err := c.Generate(context.Background(), "q"); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestCost(t *testing.T) {
	if EstimateTokens("") != 0 || EstimateTokens("abc") != 1 || EstimateTokens(strings.Repeat("a", 400)) != 100 {
		t.Error("unexpected token estimates")
	}
	got := Cost(strings.Repeat("a", 4000), strings.Repeat("b", 400))
	want := (1000*0.003 + 100*0.015) / 1000
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Cost = %v, want %v", got, want)
	}
}

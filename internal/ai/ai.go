// Package ai talks to the text generation services used for metadata
// extraction and knowledge base answers.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ScientiaCapital/claude-education-platform/internal/config"
)

var ErrNotConfigured = errors.New("AI not configured")

// Generator turns a prompt into text.
type Generator interface {
	// Name is the rate limiter service the generator draws from.
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	defaultMaxTokens = 1000

	claudeURL   = "https://api.anthropic.com/v1/messages"
	openaiURL   = "https://api.openai.com/v1/chat/completions"
	deepseekURL = "https://api.deepseek.com/chat/completions"
)

// New creates a Generator from the given AI config.
func New(cfg *config.AIConfig, apiKey string) (Generator, error) {
	if cfg == nil || apiKey == "" {
		return nil, ErrNotConfigured
	}

	client := &http.Client{Timeout: 30 * time.Second}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	switch cfg.Provider {
	case "claude":
		model := cfg.Model
		if model == "" {
			model = "claude-3-5-sonnet-20241022"
		}
		return &claudeProvider{apiKey: apiKey, model: model, maxTokens: maxTokens, url: claudeURL, client: client}, nil
	case "openai":
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return &chatProvider{name: "openai", apiKey: apiKey, model: model, maxTokens: maxTokens, url: openaiURL, client: client}, nil
	case "deepseek":
		model := cfg.Model
		if model == "" {
			model = "deepseek-chat"
		}
		return &chatProvider{name: "deepseek", apiKey: apiKey, model: model, maxTokens: maxTokens, url: deepseekURL, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (valid: claude, openai, deepseek)", cfg.Provider)
	}
}

// --- Claude provider ---

type claudeProvider struct {
	apiKey    string
	model     string
	maxTokens int
	url       string
	client    *http.Client
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *claudeProvider) Name() string { return "anthropic" }

func (c *claudeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(claudeRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude API connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("claude API %d: %s", resp.StatusCode, string(b))
	}

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding claude response: %w", err)
	}
	if len(cr.Content) == 0 {
		return "", fmt.Errorf("empty claude response")
	}
	return cr.Content[0].Text, nil
}

// --- OpenAI compatible provider (OpenAI, DeepSeek) ---

type chatProvider struct {
	name      string
	apiKey    string
	model     string
	maxTokens int
	url       string
	client    *http.Client
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *chatProvider) Name() string { return o.name }

func (o *chatProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(chatRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", o.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s API connection error: %w", o.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%s API %d: %s", o.name, resp.StatusCode, string(b))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", o.name, err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty %s response", o.name)
	}
	return cr.Choices[0].Message.Content, nil
}

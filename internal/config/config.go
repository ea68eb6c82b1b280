package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

type AIConfig struct {
	Provider  string `yaml:"provider"` // "claude", "openai" or "deepseek"
	APIKey    string `yaml:"api_key,omitempty"`
	Model     string `yaml:"model,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

type FirecrawlConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key,omitempty"`
}

type Feed struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type SearchConfig struct {
	TavilyAPIKey string `yaml:"tavily_api_key,omitempty"`
	ExaAPIKey    string `yaml:"exa_api_key,omitempty"`
	MaxResults   int    `yaml:"max_results,omitempty"`
	Feeds        []Feed `yaml:"feeds"`
}

// Quota mirrors ratelimit.Quota so the config package stays dependency free.
type Quota struct {
	BurstLimit        int `yaml:"burst_limit"`
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
}

type CacheConfig struct {
	Dir        string `yaml:"dir,omitempty"`
	MaxAge     string `yaml:"max_age"`
	DurableTTL string `yaml:"durable_ttl"`
	Retention  string `yaml:"retention"`
}

type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries"`
	BaseDelay  string   `yaml:"base_delay"`
	RetryOn    []string `yaml:"retry_on"`
}

type ScraperConfig struct {
	Concurrency         int     `yaml:"concurrency"`
	RelevanceThreshold  float64 `yaml:"relevance_threshold"`
	SuggestionThreshold float64 `yaml:"suggestion_threshold"`
	MaxContentChars     int     `yaml:"max_content_chars"`
	Coalesce            bool    `yaml:"coalesce"`
}

type KnowledgeBaseConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

type Config struct {
	AI            *AIConfig           `yaml:"ai,omitempty"`
	Firecrawl     FirecrawlConfig     `yaml:"firecrawl"`
	Search        SearchConfig        `yaml:"search"`
	RateLimits    map[string]Quota    `yaml:"rate_limits"`
	Cache         CacheConfig         `yaml:"cache"`
	Retry         RetryConfig         `yaml:"retry"`
	Scraper       ScraperConfig       `yaml:"scraper"`
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
}

var providerKeyEnv = map[string]string{
	"claude":   "ANTHROPIC_API_KEY",
	"openai":   "OPENAI_API_KEY",
	"deepseek": "DEEPSEEK_API_KEY",
}

// AIEnabled returns true if a generation provider is configured with a key.
func (c *Config) AIEnabled() bool {
	return c.AI != nil && c.AIKey() != ""
}

// AIKey returns the resolved API key (config or the provider's env var).
func (c *Config) AIKey() string {
	if c.AI == nil {
		return ""
	}
	if c.AI.APIKey != "" {
		return c.AI.APIKey
	}
	return os.Getenv(providerKeyEnv[c.AI.Provider])
}

func (c *Config) FirecrawlKey() string {
	if c.Firecrawl.APIKey != "" {
		return c.Firecrawl.APIKey
	}
	return os.Getenv("FIRECRAWL_API_KEY")
}

func (c *Config) TavilyKey() string {
	if c.Search.TavilyAPIKey != "" {
		return c.Search.TavilyAPIKey
	}
	return os.Getenv("TAVILY_API_KEY")
}

func (c *Config) ExaKey() string {
	if c.Search.ExaAPIKey != "" {
		return c.Search.ExaAPIKey
	}
	return os.Getenv("EXA_API_KEY")
}

func (c *Config) EnabledFeeds() []Feed {
	var out []Feed
	for _, f := range c.Search.Feeds {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// MaxAge is how long a cached scrape stays valid. Defaults to 24h.
func (c *Config) MaxAge() time.Duration {
	return parseDuration(c.Cache.MaxAge, 24*time.Hour)
}

// DurableTTL is the expiry written to the SQLite tier. Defaults to 24h.
func (c *Config) DurableTTL() time.Duration {
	return parseDuration(c.Cache.DurableTTL, 24*time.Hour)
}

// RetentionDuration is the age after which cleanup removes entries.
func (c *Config) RetentionDuration() time.Duration {
	return parseDuration(c.Cache.Retention, 7*24*time.Hour)
}

func (c *Config) RetryBaseDelay() time.Duration {
	return parseDuration(c.Retry.BaseDelay, time.Second)
}

// GetConcurrency returns the bulk enrichment gate, defaulting to 3.
func (c *Config) GetConcurrency() int {
	if c.Scraper.Concurrency <= 0 {
		return 3
	}
	return c.Scraper.Concurrency
}

// ParseDuration accepts Go durations plus an "Nd" day syntax.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "edututor", "config.yaml")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "edututor", "edututor.db")
}

// FileCacheDir is the root of the file tier unless cache.dir overrides it.
func (c *Config) FileCacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return filepath.Join(xdg.CacheHome, "edututor", "educational")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the user config on top of the embedded defaults. Keys missing
// from the user file keep their default values; rate limit entries merge
// per service.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: embedded defaults still apply
			_ = writeDefaults(path)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	if cfg.AI != nil {
		if _, ok := providerKeyEnv[cfg.AI.Provider]; !ok {
			return fmt.Errorf("ai: unknown provider %q (valid: claude, openai, deepseek)", cfg.AI.Provider)
		}
	}
	for i, f := range cfg.Search.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feed %d: name is required", i)
		}
		if f.URL == "" {
			return fmt.Errorf("feed %q: url is required", f.Name)
		}
		u, err := url.Parse(f.URL)
		if err != nil {
			return fmt.Errorf("feed %q: invalid url: %w", f.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("feed %q: url scheme must be http or https, got %q", f.Name, u.Scheme)
		}
	}
	for name, q := range cfg.RateLimits {
		if q.BurstLimit < 0 || q.RequestsPerMinute < 0 || q.RequestsPerHour < 0 {
			return fmt.Errorf("rate limit %q: limits must not be negative", name)
		}
	}
	kb := cfg.KnowledgeBase
	if kb.ChunkSize > 0 && kb.ChunkOverlap >= kb.ChunkSize {
		return fmt.Errorf("knowledge_base: chunk_overlap (%d) must be smaller than chunk_size (%d)", kb.ChunkOverlap, kb.ChunkSize)
	}
	if ttl, age := cfg.DurableTTL(), cfg.MaxAge(); ttl < age {
		return fmt.Errorf("cache: durable_ttl (%s) must not be shorter than max_age (%s)", ttl, age)
	}
	if t := cfg.Scraper.RelevanceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("scraper: relevance_threshold must be within [0, 1], got %v", t)
	}
	return nil
}

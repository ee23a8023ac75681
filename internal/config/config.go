package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting the services read. All values come from the
// environment; anything optional has a default that works for local runs.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Redis   RedisConfig
	LLM     LLMConfig
	Fetch   FetchConfig
	Worker  WorkerConfig
	Search  SearchConfig
	Log     LogConfig
}

type LogConfig struct {
	Level string
}

type ServerConfig struct {
	BindAddr string
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

// RedisConfig configures the optional cache backend. When Addr is empty the
// services fall back to the in-process cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

type FetchConfig struct {
	Interval   time.Duration
	RSSFeeds   []FeedConfig
	Subreddits []string
	UserAgent  string
}

// FeedConfig names one RSS source.
type FeedConfig struct {
	Name string
	URL  string
}

type WorkerConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	DedupeTTL    time.Duration
}

type SearchConfig struct {
	CacheTTL    time.Duration
	DefaultPage int
	MaxPage     int
}

// Load builds a Config from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("BIND_ADDR", "127.0.0.1:4000"),
			APIToken: getEnv("API_TOKEN", ""),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", defaultDataDir()),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		LLM: LLMConfig{
			APIKey:     getEnv("GEMINI_API_KEY", ""),
			BaseURL:    getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:      getEnv("LLM_MODEL", "gemini-2.5-flash"),
			EmbedModel: getEnv("LLM_EMBED_MODEL", "text-embedding-004"),
			Timeout:    getDuration("LLM_TIMEOUT", "30s"),
		},
		Fetch: FetchConfig{
			Interval:   getDuration("FETCH_INTERVAL", "3m"),
			RSSFeeds:   parseFeeds(getEnv("RSS_FEEDS", defaultFeeds)),
			Subreddits: splitAndTrim(getEnv("SUBREDDITS", "technology")),
			UserAgent:  getEnv("REDDIT_USER_AGENT", "newspulse/1.0"),
		},
		Worker: WorkerConfig{
			PollInterval: getDuration("WORKER_POLL_INTERVAL", "500ms"),
			MaxAttempts:  getInt("WORKER_MAX_ATTEMPTS", 5),
			DedupeTTL:    getDuration("DEDUPE_TTL", "168h"),
		},
		Search: SearchConfig{
			CacheTTL:    getDuration("SEARCH_CACHE_TTL", "5m"),
			DefaultPage: getInt("SEARCH_PAGE_SIZE", 20),
			MaxPage:     getInt("SEARCH_MAX_PAGE_SIZE", 100),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultFeeds = "arstechnica=https://feeds.arstechnica.com/arstechnica/index,techcrunch=https://techcrunch.com/feed/"

func (c *Config) validate() error {
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("WORKER_MAX_ATTEMPTS must be positive")
	}
	if c.Worker.DedupeTTL <= 0 {
		return fmt.Errorf("DEDUPE_TTL must be positive")
	}
	if c.Fetch.Interval <= 0 {
		return fmt.Errorf("FETCH_INTERVAL must be positive")
	}
	if c.Search.DefaultPage <= 0 {
		return fmt.Errorf("SEARCH_PAGE_SIZE must be positive")
	}
	if c.Search.MaxPage < c.Search.DefaultPage {
		return fmt.Errorf("SEARCH_MAX_PAGE_SIZE cannot be below SEARCH_PAGE_SIZE")
	}
	if len(c.Fetch.RSSFeeds) == 0 && len(c.Fetch.Subreddits) == 0 {
		return fmt.Errorf("at least one RSS feed or subreddit must be configured")
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".newspulse"
	}
	return home + "/.newspulse"
}

// parseFeeds parses "name=url,name=url" pairs. Entries without both a name
// and a URL are dropped so that source names stay stable across runs.
func parseFeeds(raw string) []FeedConfig {
	var feeds []FeedConfig
	for _, part := range splitAndTrim(raw) {
		name, url, ok := strings.Cut(part, "=")
		if !ok || name == "" || url == "" {
			continue
		}
		feeds = append(feeds, FeedConfig{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return feeds
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

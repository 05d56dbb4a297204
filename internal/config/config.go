// Package config loads runtime settings from the environment and an
// optional YAML feeds file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Channel backends.
const (
	BackendDiscord  = "discord"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Feed kinds.
const (
	KindRSS     = "rss"
	KindATProto = "atproto"
)

// Feed describes one polled feed.
type Feed struct {
	Name        string        `yaml:"name"`
	Kind        string        `yaml:"kind"`
	SinkChannel string        `yaml:"sink_channel"`
	Interval    time.Duration `yaml:"interval"`
	FeedURI     string        `yaml:"feed_uri"`
	Concurrency int           `yaml:"concurrency"`
}

type feedsFile struct {
	Feeds []Feed `yaml:"feeds"`
}

// Config holds all configuration for the application.
type Config struct {
	Backend      string
	DiscordToken string
	DBChannelID  string
	DatabaseDSN  string
	BskyBaseURL  string
	BskyID       string
	BskyPassword string
	FeedsFile    string
	Feeds        []Feed
	APIPort      string
	HTTPTimeout  time.Duration
	LogLevel     slog.Level
	LogFormat    string
	LLMProvider  string
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	LLMMaxTokens int
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Backend:      strings.ToLower(getEnv("CHANNEL_BACKEND", BackendDiscord)),
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		DBChannelID:  os.Getenv("DISCORD_DB_CHANNEL_ID"),
		DatabaseDSN:  getEnv("DATABASE_DSN", "./data/rinton.db"),
		BskyBaseURL:  getEnv("BSKY_BASE_URL", "https://bsky.social"),
		BskyID:       os.Getenv("BSKY_IDENTIFIER"),
		BskyPassword: os.Getenv("BSKY_PASS"),
		FeedsFile:    os.Getenv("FEEDS_FILE"),
		APIPort:      getEnv("API_PORT", "8080"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMBaseURL:   os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:    os.Getenv("LLM_API_KEY"),
		LLMModel:     getEnv("LLM_MODEL", "gpt-4o-mini"),
	}

	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("HTTP_TIMEOUT must be a duration: %w", err)
	}
	cfg.HTTPTimeout = timeout

	maxTokens, err := strconv.Atoi(getEnv("LLM_MAX_TOKENS", "1024"))
	if err != nil || maxTokens <= 0 {
		return nil, fmt.Errorf("LLM_MAX_TOKENS must be a positive integer")
	}
	cfg.LLMMaxTokens = maxTokens

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch cfg.Backend {
	case BackendDiscord:
		if cfg.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required for the discord backend")
		}
	case BackendSQLite, BackendPostgres, BackendMemory:
	default:
		return nil, fmt.Errorf("CHANNEL_BACKEND %q is not one of discord, sqlite, postgres, memory", cfg.Backend)
	}
	if cfg.DBChannelID == "" {
		if cfg.Backend == BackendDiscord {
			return nil, fmt.Errorf("DISCORD_DB_CHANNEL_ID is required")
		}
		cfg.DBChannelID = "db"
	}

	if cfg.FeedsFile != "" {
		feeds, err := LoadFeeds(cfg.FeedsFile)
		if err != nil {
			return nil, err
		}
		cfg.Feeds = feeds
	}

	return cfg, nil
}

// LoadFeeds reads and validates a YAML feeds file.
func LoadFeeds(path string) ([]Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	return ParseFeeds(data)
}

// ParseFeeds decodes feed definitions and applies defaults.
func ParseFeeds(data []byte) ([]Feed, error) {
	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse feeds file: %w", err)
	}
	seen := make(map[string]bool)
	for i := range f.Feeds {
		feed := &f.Feeds[i]
		if feed.Kind == "" {
			feed.Kind = feed.Name
		}
		if feed.Name == "" {
			feed.Name = feed.Kind
		}
		switch feed.Kind {
		case KindRSS:
			// rss_link records are shared, so there is a single RSS feed.
			if feed.Name != KindRSS {
				return nil, fmt.Errorf("feed %s: rss feeds must be named %q", feed.Name, KindRSS)
			}
		case KindATProto:
			if feed.FeedURI == "" {
				return nil, fmt.Errorf("feed %s: feed_uri is required", feed.Name)
			}
		default:
			return nil, fmt.Errorf("feed %s: unknown kind %q", feed.Name, feed.Kind)
		}
		if feed.SinkChannel == "" {
			return nil, fmt.Errorf("feed %s: sink_channel is required", feed.Name)
		}
		if strings.ContainsAny(feed.Name, " \t") {
			return nil, fmt.Errorf("feed %s: name must not contain whitespace", feed.Name)
		}
		if seen[feed.Name] {
			return nil, fmt.Errorf("feed %s: duplicate name", feed.Name)
		}
		seen[feed.Name] = true
		if feed.Interval == 0 {
			feed.Interval = 15 * time.Minute
		}
	}
	return f.Feeds, nil
}

// Feed returns the named feed definition.
func (c *Config) Feed(name string) (Feed, bool) {
	for _, f := range c.Feeds {
		if f.Name == name {
			return f, true
		}
	}
	return Feed{}, false
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CHANNEL_BACKEND", "DISCORD_TOKEN", "DISCORD_DB_CHANNEL_ID", "DATABASE_DSN",
	"FEEDS_FILE", "HTTP_TIMEOUT", "LOG_LEVEL", "LLM_MAX_TOKENS", "API_PORT",
}

// clearEnv blanks every variable Load reads so the host env does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_DiscordRequiresToken(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.ErrorContains(t, err, "DISCORD_TOKEN")

	t.Setenv("DISCORD_TOKEN", "tok")
	_, err = Load()
	assert.ErrorContains(t, err, "DISCORD_DB_CHANNEL_ID")

	t.Setenv("DISCORD_DB_CHANNEL_ID", "1234")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendDiscord, cfg.Backend)
	assert.Equal(t, "1234", cfg.DBChannelID)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "8080", cfg.APIPort)
}

func TestLoad_LocalBackendDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHANNEL_BACKEND", "SQLite")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "db", cfg.DBChannelID)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown backend", key: "CHANNEL_BACKEND", val: "carrier-pigeon"},
		{name: "bad timeout", key: "HTTP_TIMEOUT", val: "soon"},
		{name: "bad log level", key: "LOG_LEVEL", val: "chatty"},
		{name: "bad max tokens", key: "LLM_MAX_TOKENS", val: "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CHANNEL_BACKEND", "memory")
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_FeedsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
feeds:
  - name: rss
    sink_channel: "111"
    interval: 30m
  - name: atproto
    sink_channel: "222"
    feed_uri: at://did:plc:x/app.bsky.feed.generator/news
`), 0o644))
	t.Setenv("CHANNEL_BACKEND", "memory")
	t.Setenv("FEEDS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Feeds, 2)

	rss, ok := cfg.Feed("rss")
	require.True(t, ok)
	assert.Equal(t, KindRSS, rss.Kind)
	assert.Equal(t, 30*time.Minute, rss.Interval)

	at, ok := cfg.Feed("atproto")
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, at.Interval)

	_, ok = cfg.Feed("missing")
	assert.False(t, ok)
}

func TestParseFeeds_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown kind", yaml: "feeds:\n  - name: x\n    kind: gopher\n    sink_channel: \"1\"\n"},
		{name: "missing sink", yaml: "feeds:\n  - name: rss\n"},
		{name: "atproto without uri", yaml: "feeds:\n  - name: atproto\n    sink_channel: \"1\"\n"},
		{name: "renamed rss", yaml: "feeds:\n  - name: news\n    kind: rss\n    sink_channel: \"1\"\n"},
		{name: "duplicate", yaml: "feeds:\n  - name: rss\n    sink_channel: \"1\"\n  - name: rss\n    sink_channel: \"2\"\n"},
		{name: "not yaml", yaml: "feeds: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFeeds([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseFeeds_NamedSocialFeed(t *testing.T) {
	feeds, err := ParseFeeds([]byte(`
feeds:
  - name: bsky_news
    kind: atproto
    sink_channel: "9"
    feed_uri: at://did:plc:x/app.bsky.feed.generator/news
`))
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, "bsky_news", feeds[0].Name)
	assert.Equal(t, KindATProto, feeds[0].Kind)
}

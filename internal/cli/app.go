package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bryan-buckman/rinton/internal/atproto"
	"github.com/bryan-buckman/rinton/internal/channel"
	"github.com/bryan-buckman/rinton/internal/config"
	"github.com/bryan-buckman/rinton/internal/database"
	"github.com/bryan-buckman/rinton/internal/discord"
	"github.com/bryan-buckman/rinton/internal/llm"
	"github.com/bryan-buckman/rinton/internal/pipeline"
	"github.com/bryan-buckman/rinton/internal/recordstore"
	"github.com/bryan-buckman/rinton/internal/rss"
	"github.com/bryan-buckman/rinton/internal/todo"
)

// App wires the configured channel backend to the record store and the
// components built on it.
type App struct {
	cfg     *config.Config
	channel channel.Channel
	discord *discord.Client
	client  *http.Client
	close   func() error

	Store *recordstore.Store
	Todos *todo.Manager
	Feeds *rss.Fetcher
}

// NewApp opens the channel backend named by cfg.Backend.
func NewApp(cfg *config.Config) (*App, error) {
	a := &App{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		close:  func() error { return nil },
	}

	switch cfg.Backend {
	case config.BackendDiscord:
		dc, err := discord.New(cfg.DiscordToken)
		if err != nil {
			return nil, err
		}
		a.channel = dc
		a.discord = dc
	case config.BackendSQLite, config.BackendPostgres:
		if cfg.Backend == config.BackendSQLite {
			if dir := filepath.Dir(cfg.DatabaseDSN); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create data dir: %w", err)
				}
			}
		}
		db, err := database.Open(cfg.Backend, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
		}
		slog.Debug("Database initialized", "type", db.DatabaseType())
		a.channel = db
		a.close = db.Close
	case config.BackendMemory:
		a.channel = channel.NewMemory()
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	a.Store = recordstore.New(a.channel, cfg.DBChannelID)
	a.Todos = todo.NewManager(a.Store)

	concurrency := rss.DefaultConcurrency
	if f, ok := cfg.Feed(config.KindRSS); ok && f.Concurrency > 0 {
		concurrency = f.Concurrency
	}
	a.Feeds = rss.NewFetcher(a.Store, a.client, concurrency)
	return a, nil
}

// Close releases the backend.
func (a *App) Close() error {
	return a.close()
}

// sink returns the notification sink for a channel. Discord gets embeds;
// other backends get plain text messages.
func (a *App) sink(channelID string) pipeline.Sink {
	if a.discord != nil {
		return discord.NewEmbedSink(a.discord, channelID)
	}
	return pipeline.NewChannelSink(a.channel, channelID)
}

// Schedules builds one pipeline per configured feed. Social feeds log in
// here, so a bad credential fails startup.
func (a *App) Schedules(ctx context.Context) ([]pipeline.Schedule, error) {
	marks := pipeline.NewWatermarks(a.Store, nil)
	schedules := make([]pipeline.Schedule, 0, len(a.cfg.Feeds))
	for _, f := range a.cfg.Feeds {
		var adapter pipeline.Adapter
		switch f.Kind {
		case config.KindRSS:
			adapter = a.Feeds
		case config.KindATProto:
			c, err := atproto.New(ctx, atproto.Config{
				Name:       f.Name,
				BaseURL:    a.cfg.BskyBaseURL,
				Identifier: a.cfg.BskyID,
				Password:   a.cfg.BskyPassword,
				FeedURI:    f.FeedURI,
				Client:     a.client,
			})
			if err != nil {
				return nil, fmt.Errorf("feed %s: %w", f.Name, err)
			}
			adapter = c
		default:
			return nil, fmt.Errorf("feed %s: unknown kind %q", f.Name, f.Kind)
		}
		schedules = append(schedules, pipeline.Schedule{
			Pipeline: pipeline.New(adapter, a.sink(f.SinkChannel), marks, nil),
			Interval: f.Interval,
		})
	}
	return schedules, nil
}

// Responder returns the configured language model, or nil without an API key.
func (a *App) Responder() (llm.Responder, error) {
	if a.cfg.LLMAPIKey == "" {
		return nil, nil
	}
	return llm.New(llm.Config{
		Provider:  a.cfg.LLMProvider,
		BaseURL:   a.cfg.LLMBaseURL,
		APIKey:    a.cfg.LLMAPIKey,
		Model:     a.cfg.LLMModel,
		MaxTokens: a.cfg.LLMMaxTokens,
		Client:    a.client,
	})
}

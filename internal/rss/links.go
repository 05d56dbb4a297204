package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bryan-buckman/rinton/internal/model"
)

// Link is a configured feed source.
type Link struct {
	URL    string
	Handle string
}

// Links returns the configured sources, newest first. Duplicate URLs are
// reported once.
func (f *Fetcher) Links(ctx context.Context) ([]Link, error) {
	records, err := f.store.Records(ctx, model.TagRSSLink)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(records))
	links := make([]Link, 0, len(records))
	for _, rec := range records {
		u := rec.Field(0)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		links = append(links, Link{URL: u, Handle: rec.Handle})
	}
	return links, nil
}

// MaxLinks is the number of sources the store accepts: half the scan window,
// so links cannot push todos and watermarks out of it.
func (f *Fetcher) MaxLinks() int {
	return max(f.store.Window()/2, 1)
}

// AddLink registers a new source. It returns false when the URL is already
// configured and ErrLimitReached once MaxLinks sources exist.
func (f *Fetcher) AddLink(ctx context.Context, feedURL string) (bool, error) {
	feedURL = strings.TrimSpace(feedURL)
	if err := validateURL(feedURL); err != nil {
		return false, err
	}

	unlock := f.store.Lock(model.TagRSSLink)
	defer unlock()

	links, err := f.Links(ctx)
	if err != nil {
		return false, err
	}
	for _, l := range links {
		if l.URL == feedURL {
			return false, nil
		}
	}
	if limit := f.MaxLinks(); len(links) >= limit {
		slog.Warn("RSS source limit reached", "url", feedURL, "limit", limit)
		return false, fmt.Errorf("%w: at most %d rss links", model.ErrLimitReached, limit)
	}
	if _, err := f.store.Append(ctx, model.TagRSSLink, feedURL); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveLink deletes every record holding feedURL.
func (f *Fetcher) RemoveLink(ctx context.Context, feedURL string) error {
	feedURL = strings.TrimSpace(feedURL)

	unlock := f.store.Lock(model.TagRSSLink)
	defer unlock()

	records, err := f.store.Records(ctx, model.TagRSSLink)
	if err != nil {
		return err
	}
	removed := 0
	for _, rec := range records {
		if rec.Field(0) != feedURL {
			continue
		}
		if err := f.store.Delete(ctx, rec.Handle); err != nil {
			return err
		}
		removed++
	}
	if removed == 0 {
		return fmt.Errorf("%w: rss link %s", model.ErrNotFound, feedURL)
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return fmt.Errorf("%w: feed url %q", model.ErrInvalidInput, raw)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: feed url %q must be http(s)", model.ErrInvalidInput, raw)
	}
	return nil
}

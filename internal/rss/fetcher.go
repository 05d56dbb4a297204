// Package rss provides the RSS/Atom feed adapter.
package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/bryan-buckman/rinton/internal/recordstore"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Name is the feed name used for the adapter and its watermark.
const Name = "rss"

// Concurrency settings
const (
	// DefaultConcurrency is the number of feeds fetched in parallel.
	DefaultConcurrency = 4
	// MaxConcurrencyPerDomain limits parallel requests to any single domain
	MaxConcurrencyPerDomain = 2
	// DelayBetweenDomainRequests is the minimum delay between requests to the same domain
	DelayBetweenDomainRequests = 500 * time.Millisecond
	// maxTextRunes bounds the notification body taken from a description.
	maxTextRunes = 400
)

// domainLimiter controls rate limiting per domain to avoid overwhelming hosts.
type domainLimiter struct {
	mu       sync.Mutex
	sems     map[string]*semaphore.Weighted
	limiters map[string]*rate.Limiter
}

func newDomainLimiter() *domainLimiter {
	return &domainLimiter{
		sems:     make(map[string]*semaphore.Weighted),
		limiters: make(map[string]*rate.Limiter),
	}
}

// acquire gets a slot for the domain and waits out the per-domain delay.
func (dl *domainLimiter) acquire(ctx context.Context, domain string) error {
	dl.mu.Lock()
	sem, ok := dl.sems[domain]
	if !ok {
		sem = semaphore.NewWeighted(MaxConcurrencyPerDomain)
		dl.sems[domain] = sem
		dl.limiters[domain] = rate.NewLimiter(rate.Every(DelayBetweenDomainRequests), 1)
	}
	lim := dl.limiters[domain]
	dl.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := lim.Wait(ctx); err != nil {
		sem.Release(1)
		return err
	}
	return nil
}

func (dl *domainLimiter) release(domain string) {
	dl.mu.Lock()
	sem := dl.sems[domain]
	dl.mu.Unlock()
	if sem != nil {
		sem.Release(1)
	}
}

// extractDomain gets the host from a URL.
func extractDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL // fallback to full URL
	}
	return u.Host
}

// Fetcher is the RSS adapter. Its sources are the rss_link records of the
// store; each source is fetched independently and a failing source only
// drops its own items.
type Fetcher struct {
	store         *recordstore.Store
	parser        *gofeed.Parser
	concurrency   int
	domainLimiter *domainLimiter
}

// NewFetcher creates an RSS adapter. A nil client uses http.DefaultClient.
func NewFetcher(store *recordstore.Store, client *http.Client, concurrency int) *Fetcher {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	return &Fetcher{
		store:         store,
		parser:        parser,
		concurrency:   concurrency,
		domainLimiter: newDomainLimiter(),
	}
}

// Name implements pipeline.Adapter.
func (f *Fetcher) Name() string {
	return Name
}

// Fetch returns the items of every configured source, grouped by source in
// link order. Sources that fail to fetch or parse contribute nothing.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.Item, error) {
	links, err := f.Links(ctx)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}

	slog.Info("Fetching RSS sources", "count", len(links), "concurrency", f.concurrency)

	results := make([][]model.Item, len(links))
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, link := range links {
		g.Go(func() error {
			items, err := f.FetchFeed(ctx, link.URL)
			if err != nil {
				slog.Warn("Skipping RSS source", "url", link.URL, "error", err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var items []model.Item
	for _, r := range results {
		items = append(items, r...)
	}
	return items, nil
}

// FetchFeed fetches and parses a single source.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]model.Item, error) {
	domain := extractDomain(feedURL)
	if err := f.domainLimiter.acquire(ctx, domain); err != nil {
		return nil, fmt.Errorf("rate limit cancelled for %s: %w", feedURL, err)
	}
	defer f.domainLimiter.release(domain)

	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed %s: %v", model.ErrFetchFailed, feedURL, err)
	}
	return convert(parsed), nil
}

func convert(feed *gofeed.Feed) []model.Item {
	avatar := ""
	if feed.Image != nil {
		avatar = feed.Image.URL
	}
	items := make([]model.Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		author := feed.Title
		if len(it.Authors) > 0 && it.Authors[0] != nil && it.Authors[0].Name != "" {
			author = it.Authors[0].Name
		}
		body := it.Description
		if body == "" {
			body = it.Content
		}
		items = append(items, model.Item{
			Source:    Name,
			Author:    author,
			AvatarURL: avatar,
			Title:     strings.TrimSpace(it.Title),
			Text:      truncate(htmlToText(body), maxTextRunes),
			Link:      it.Link,
			Footer:    feed.Title,
			CreatedAt: itemTime(it),
		})
	}
	return items
}

// itemTime prefers the published date, then the updated date. Items with
// neither get the zero time and are never delivered.
func itemTime(it *gofeed.Item) time.Time {
	if it.PublishedParsed != nil {
		return it.PublishedParsed.UTC()
	}
	if it.UpdatedParsed != nil {
		return it.UpdatedParsed.UTC()
	}
	return time.Time{}
}

// Package pipeline runs watermark-driven poll cycles: fetch items from an
// adapter, keep the ones newer than the feed's watermark, deliver them to a
// sink and commit a new watermark.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/google/uuid"
)

// ErrCycleRunning is returned when a cycle for the same feed is in flight.
var ErrCycleRunning = errors.New("cycle already running")

// Adapter fetches raw items from one external source. Each adapter decides
// its own failure policy: a single-source adapter fails atomically, a
// multi-source adapter may skip failing sources.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Item, error)
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	ID        string
	Feed      string
	Fetched   int
	Delivered int
	Failed    int
	Watermark time.Time
}

// Pipeline binds an adapter to a sink and a watermark.
type Pipeline struct {
	adapter    Adapter
	sink       Sink
	watermarks *Watermarks
	now        func() time.Time

	running sync.Mutex
}

// New creates a pipeline. A nil clock defaults to time.Now.
func New(adapter Adapter, sink Sink, watermarks *Watermarks, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		adapter:    adapter,
		sink:       sink,
		watermarks: watermarks,
		now:        now,
	}
}

// Name returns the feed name, which is the adapter name.
func (p *Pipeline) Name() string {
	return p.adapter.Name()
}

// RunCycle performs one fetch, filter, deliver and commit traversal.
// A fetch failure aborts the cycle before the watermark is touched.
// Delivery failures are logged and the watermark is still committed, so a
// failed item is not retried. The committed watermark is the time the cycle
// started, never an item timestamp.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleResult, error) {
	if !p.running.TryLock() {
		return CycleResult{}, fmt.Errorf("%s: %w", p.Name(), ErrCycleRunning)
	}
	defer p.running.Unlock()

	feed := p.Name()
	res := CycleResult{ID: uuid.NewString(), Feed: feed}
	logger := slog.Default().With("feed", feed, "cycle_id", res.ID)
	now := p.now().UTC()

	items, err := p.adapter.Fetch(ctx)
	if err != nil {
		logger.Error("Fetch failed, watermark unchanged", "error", err)
		return res, fmt.Errorf("fetch %s: %w", feed, err)
	}
	res.Fetched = len(items)

	mark, found, err := p.watermarks.Read(ctx, feed)
	if err != nil {
		return res, fmt.Errorf("read watermark for %s: %w", feed, err)
	}
	if !found {
		logger.Info("No watermark yet, starting from now", "watermark", mark)
	}

	fresh := Filter(items, mark)
	for _, item := range fresh {
		if err := p.sink.Deliver(ctx, item); err != nil {
			res.Failed++
			logger.Warn("Delivery failed", "title", item.Title, "error", err)
			continue
		}
		res.Delivered++
	}

	if err := p.watermarks.Commit(ctx, feed, now); err != nil {
		logger.Error("Watermark commit failed", "error", err)
		return res, err
	}
	res.Watermark = now
	logger.Info("Cycle complete", "fetched", res.Fetched, "delivered", res.Delivered, "failed", res.Failed)
	return res, nil
}

// Filter keeps items strictly newer than mark, in source order. Items with
// a zero timestamp are always dropped.
func Filter(items []model.Item, mark time.Time) []model.Item {
	var fresh []model.Item
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			continue
		}
		if item.CreatedAt.After(mark) {
			fresh = append(fresh, item)
		}
	}
	return fresh
}

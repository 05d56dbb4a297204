package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bryan-buckman/rinton/internal/channel"
	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/bryan-buckman/rinton/internal/recordstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name  string
	items []model.Item
	err   error
	block chan struct{}
	calls int
	mu    sync.Mutex
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context) ([]model.Item, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.items, f.err
}

func (f *fakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	delivered []model.Item
	failTitle string
}

func (s *fakeSink) Deliver(ctx context.Context, item model.Item) error {
	if item.Title == s.failTitle {
		return errors.New("sink rejected item")
	}
	s.delivered = append(s.delivered, item)
	return nil
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func setup(t *testing.T, adapter Adapter, sink Sink, now time.Time) (*Pipeline, *channel.Memory, *recordstore.Store) {
	t.Helper()
	mem := channel.NewMemory()
	store := recordstore.New(mem, "db")
	clock := func() time.Time { return now }
	return New(adapter, sink, NewWatermarks(store, clock), clock), mem, store
}

func watermarks(t *testing.T, store *recordstore.Store, feed string) []model.Record {
	t.Helper()
	records, err := store.Records(context.Background(), model.WatermarkTag(feed))
	require.NoError(t, err)
	return records
}

func TestRunCycle_DeliversOnlyItemsAfterWatermark(t *testing.T) {
	adapter := &fakeAdapter{name: "rss", items: []model.Item{
		{Title: "t-1", CreatedAt: at(-1)},
		{Title: "t", CreatedAt: at(0)},
		{Title: "t+1", CreatedAt: at(1)},
		{Title: "t+5", CreatedAt: at(5)},
	}}
	sink := &fakeSink{}
	p, _, store := setup(t, adapter, sink, at(6))
	ctx := context.Background()
	_, err := store.Append(ctx, model.WatermarkTag("rss"), base.Format(model.WatermarkLayout))
	require.NoError(t, err)

	res, err := p.RunCycle(ctx)
	require.NoError(t, err)

	require.Len(t, sink.delivered, 2)
	assert.Equal(t, "t+1", sink.delivered[0].Title)
	assert.Equal(t, "t+5", sink.delivered[1].Title)
	assert.Equal(t, 4, res.Fetched)
	assert.Equal(t, 2, res.Delivered)
	assert.NotEmpty(t, res.ID)

	records := watermarks(t, store, "rss")
	require.Len(t, records, 1)
	committed, err := time.Parse(model.WatermarkLayout, records[0].Tail(0))
	require.NoError(t, err)
	assert.False(t, committed.Before(at(5)))
	assert.Equal(t, at(6), committed)
}

func TestRunCycle_FutureDatedItemDoesNotAdvanceWatermark(t *testing.T) {
	adapter := &fakeAdapter{name: "rss", items: []model.Item{
		{Title: "clock skew", CreatedAt: at(60)},
	}}
	sink := &fakeSink{}
	now := at(0)
	mem := channel.NewMemory()
	store := recordstore.New(mem, "db")
	clock := func() time.Time { return now }
	p := New(adapter, sink, NewWatermarks(store, clock), clock)
	ctx := context.Background()
	_, err := store.Append(ctx, model.WatermarkTag("rss"), at(-10).Format(model.WatermarkLayout))
	require.NoError(t, err)

	res, err := p.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, sink.delivered, 1)
	assert.Equal(t, at(0), res.Watermark)
	records := watermarks(t, store, "rss")
	require.Len(t, records, 1)
	assert.Equal(t, at(0).Format(model.WatermarkLayout), records[0].Tail(0))

	// A normally dated item published after the first cycle still arrives.
	now = at(10)
	adapter.items = []model.Item{{Title: "on time", CreatedAt: at(5)}}
	sink.delivered = nil

	res, err = p.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, sink.delivered, 1)
	assert.Equal(t, "on time", sink.delivered[0].Title)
	assert.Equal(t, at(10), res.Watermark)
}

func TestRunCycle_FetchFailureKeepsWatermark(t *testing.T) {
	adapter := &fakeAdapter{name: "atproto", err: model.ErrFetchFailed}
	sink := &fakeSink{}
	p, _, store := setup(t, adapter, sink, at(10))
	ctx := context.Background()
	_, err := store.Append(ctx, model.WatermarkTag("atproto"), base.Format(model.WatermarkLayout))
	require.NoError(t, err)
	before := watermarks(t, store, "atproto")

	_, err = p.RunCycle(ctx)
	assert.ErrorIs(t, err, model.ErrFetchFailed)
	assert.Empty(t, sink.delivered)
	assert.Equal(t, before, watermarks(t, store, "atproto"))
}

func TestRunCycle_DeliveryFailureStillCommits(t *testing.T) {
	adapter := &fakeAdapter{name: "rss", items: []model.Item{
		{Title: "a", CreatedAt: at(1)},
		{Title: "broken", CreatedAt: at(2)},
		{Title: "c", CreatedAt: at(3)},
	}}
	sink := &fakeSink{failTitle: "broken"}
	p, _, store := setup(t, adapter, sink, at(4))
	ctx := context.Background()
	_, err := store.Append(ctx, model.WatermarkTag("rss"), base.Format(model.WatermarkLayout))
	require.NoError(t, err)

	res, err := p.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, sink.delivered, 2)
	assert.Equal(t, "c", sink.delivered[1].Title)

	records := watermarks(t, store, "rss")
	require.Len(t, records, 1)
	assert.Equal(t, at(4).Format(model.WatermarkLayout), records[0].Tail(0))
}

func TestRunCycle_NoWatermarkDefaultsToNow(t *testing.T) {
	adapter := &fakeAdapter{name: "rss", items: []model.Item{
		{Title: "old", CreatedAt: at(-60)},
		{Title: "older", CreatedAt: at(-120)},
	}}
	sink := &fakeSink{}
	p, _, store := setup(t, adapter, sink, base)

	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Delivered)
	assert.Empty(t, sink.delivered)
	assert.Len(t, watermarks(t, store, "rss"), 1)
}

func TestRunCycle_DropsZeroTimestamps(t *testing.T) {
	adapter := &fakeAdapter{name: "rss", items: []model.Item{
		{Title: "undated"},
		{Title: "epoch", CreatedAt: time.Unix(0, 0).UTC()},
		{Title: "fresh", CreatedAt: at(1)},
	}}
	sink := &fakeSink{}
	p, _, store := setup(t, adapter, sink, at(2))
	_, err := store.Append(context.Background(), model.WatermarkTag("rss"), base.Format(model.WatermarkLayout))
	require.NoError(t, err)

	_, err = p.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.delivered, 1)
	assert.Equal(t, "fresh", sink.delivered[0].Title)
}

func TestRunCycle_CollapsesDuplicateWatermarks(t *testing.T) {
	adapter := &fakeAdapter{name: "rss"}
	p, _, store := setup(t, adapter, &fakeSink{}, at(30))
	ctx := context.Background()
	tag := model.WatermarkTag("rss")
	_, err := store.Append(ctx, tag, at(1).Format(model.WatermarkLayout))
	require.NoError(t, err)
	_, err = store.Append(ctx, tag, at(2).Format(model.WatermarkLayout))
	require.NoError(t, err)

	_, err = p.RunCycle(ctx)
	require.NoError(t, err)
	records := watermarks(t, store, "rss")
	require.Len(t, records, 1)
	assert.Equal(t, at(30).Format(model.WatermarkLayout), records[0].Tail(0))
}

func TestRunCycle_StoreUnavailable(t *testing.T) {
	adapter := &fakeAdapter{name: "rss", items: []model.Item{{Title: "x", CreatedAt: at(1)}}}
	sink := &fakeSink{}
	p, mem, _ := setup(t, adapter, sink, at(2))
	mem.FailList = true

	_, err := p.RunCycle(context.Background())
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Empty(t, sink.delivered)
}

func TestRunCycle_RejectsOverlap(t *testing.T) {
	adapter := &fakeAdapter{name: "rss", block: make(chan struct{})}
	p, _, _ := setup(t, adapter, &fakeSink{}, base)

	done := make(chan error, 1)
	go func() {
		_, err := p.RunCycle(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return adapter.Calls() == 1 }, time.Second, time.Millisecond)

	_, err := p.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleRunning)

	close(adapter.block)
	require.NoError(t, <-done)
}

func TestWatermarks_ReadSkipsMalformed(t *testing.T) {
	mem := channel.NewMemory()
	store := recordstore.New(mem, "db")
	w := NewWatermarks(store, func() time.Time { return at(99) })
	ctx := context.Background()

	_, err := store.Append(ctx, model.WatermarkTag("rss"), at(5).Format(model.WatermarkLayout))
	require.NoError(t, err)
	_, err = store.Append(ctx, model.WatermarkTag("rss"), "garbage")
	require.NoError(t, err)

	mark, found, err := w.Read(ctx, "rss")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, at(5), mark)

	mark, found, err = w.Read(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, at(99), mark)
}

func TestFormatItem(t *testing.T) {
	text := FormatItem(model.Item{
		Author: "alice",
		Title:  "Hello",
		Text:   "body",
		Link:   "https://example.com/1",
		Footer: "2024-05-01 21:00:00",
	})
	assert.Equal(t, "**alice: Hello**\nbody\nhttps://example.com/1\n_2024-05-01 21:00:00_", text)
}

func TestChannelSink(t *testing.T) {
	mem := channel.NewMemory()
	sink := NewChannelSink(mem, "news")
	require.NoError(t, sink.Deliver(context.Background(), model.Item{Title: "T", Text: "x"}))
	msgs := mem.Messages("news")
	require.Len(t, msgs, 1)
	assert.Equal(t, "**T**\nx", msgs[0].Text)
}

func TestPoller_RunsAndStops(t *testing.T) {
	adapter := &fakeAdapter{name: "rss"}
	p, _, _ := setup(t, adapter, &fakeSink{}, base)

	poller := NewPoller(Schedule{Pipeline: p, Interval: time.Hour})
	poller.Start()
	require.Eventually(t, func() bool { return adapter.Calls() >= 1 }, time.Second, time.Millisecond)
	poller.Stop()
	assert.Equal(t, 1, adapter.Calls())
}

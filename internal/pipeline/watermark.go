package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/bryan-buckman/rinton/internal/recordstore"
)

// Watermarks reads and commits per-feed timestamp cursors kept in the
// record store as "<feed>_last_date YYYY-MM-DD HH:MM:SS" (UTC).
type Watermarks struct {
	store *recordstore.Store
	now   func() time.Time
}

// NewWatermarks creates a watermark accessor.
func NewWatermarks(store *recordstore.Store, now func() time.Time) *Watermarks {
	if now == nil {
		now = time.Now
	}
	return &Watermarks{store: store, now: now}
}

// Read returns the feed's watermark. When no valid watermark exists it
// returns now and false, so a new feed does not backfill old items.
func (w *Watermarks) Read(ctx context.Context, feed string) (time.Time, bool, error) {
	records, err := w.store.Records(ctx, model.WatermarkTag(feed))
	if err != nil {
		return time.Time{}, false, err
	}
	for _, rec := range records {
		t, err := time.ParseInLocation(model.WatermarkLayout, rec.Tail(0), time.UTC)
		if err != nil {
			slog.Warn("Ignoring malformed watermark", "feed", feed, "handle", rec.Handle, "error", err)
			continue
		}
		return t, true, nil
	}
	return w.now().UTC(), false, nil
}

// Commit replaces every watermark record of the feed with one holding t.
// Failures deleting old copies are logged and ignored; the newest record
// wins on the next Read.
func (w *Watermarks) Commit(ctx context.Context, feed string, t time.Time) error {
	tag := model.WatermarkTag(feed)
	unlock := w.store.Lock(tag)
	defer unlock()

	records, err := w.store.Records(ctx, tag)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.store.Delete(ctx, rec.Handle); err != nil {
			slog.Warn("Failed to delete old watermark", "feed", feed, "handle", rec.Handle, "error", err)
		}
	}
	if _, err := w.store.Append(ctx, tag, t.UTC().Format(model.WatermarkLayout)); err != nil {
		return fmt.Errorf("commit watermark for %s: %w", feed, err)
	}
	return nil
}

// Package recordstore turns the recent history of a chat channel into a
// tag-addressed record store.
//
// Every record is one message of the form "<tag> <field>...". The store only
// ever sees the Window most recent messages of the channel; anything older is
// invisible to all operations, so callers must keep the total record volume
// well under the window. The channel offers no atomic update and no
// isolation: Update is a delete followed by an append, and a concurrent Scan
// may observe zero or two copies of the logical record. Callers that scan and
// then write hold the tag lock returned by Lock.
package recordstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bryan-buckman/rinton/internal/channel"
	"github.com/bryan-buckman/rinton/internal/model"
)

// DefaultWindow is the number of recent messages scanned.
const DefaultWindow = 100

// Store is a scan-based record store over one channel.
type Store struct {
	ch        channel.Channel
	channelID string
	window    int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithWindow overrides the scan window.
func WithWindow(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.window = n
		}
	}
}

// New creates a record store over the given channel id.
func New(ch channel.Channel, channelID string, opts ...Option) *Store {
	s := &Store{
		ch:        ch,
		channelID: channelID,
		window:    DefaultWindow,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the number of messages a scan looks at.
func (s *Store) Window() int {
	return s.window
}

// Scan returns the records in the window whose text starts with prefix,
// newest first.
func (s *Store) Scan(ctx context.Context, prefix string) ([]model.Record, error) {
	msgs, err := s.ch.ListRecent(ctx, s.channelID, s.window)
	if err != nil {
		return nil, fmt.Errorf("%w: list channel %s: %v", model.ErrStoreUnavailable, s.channelID, err)
	}
	if len(msgs) > s.window {
		msgs = msgs[:s.window]
	}
	var records []model.Record
	for _, msg := range msgs {
		if !strings.HasPrefix(msg.Text, prefix) {
			continue
		}
		records = append(records, model.ParseRecord(msg))
	}
	return records, nil
}

// Records returns the records whose tag is exactly tag, newest first.
func (s *Store) Records(ctx context.Context, tag string) ([]model.Record, error) {
	scanned, err := s.Scan(ctx, tag)
	if err != nil {
		return nil, err
	}
	records := scanned[:0]
	for _, rec := range scanned {
		if rec.Tag == tag {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Append writes a new record and returns its handle.
func (s *Store) Append(ctx context.Context, tag string, fields ...string) (string, error) {
	id, err := s.ch.Send(ctx, s.channelID, model.FormatRecord(tag, fields...))
	if err != nil {
		return "", fmt.Errorf("%w: append %s: %v", model.ErrWriteFailed, tag, err)
	}
	return id, nil
}

// Delete removes the record at handle. A handle that is already gone is
// not an error.
func (s *Store) Delete(ctx context.Context, handle string) error {
	if err := s.ch.Delete(ctx, s.channelID, handle); err != nil {
		return fmt.Errorf("%w: delete %s: %v", model.ErrWriteFailed, handle, err)
	}
	return nil
}

// Update replaces the record at old with a new record. It is two separate
// channel calls; if the append fails the old record is already gone.
func (s *Store) Update(ctx context.Context, old, tag string, fields ...string) (string, error) {
	if err := s.Delete(ctx, old); err != nil {
		return "", err
	}
	return s.Append(ctx, tag, fields...)
}

// Lock acquires the in-process lock for tag and returns its release func.
func (s *Store) Lock(tag string) func() {
	s.mu.Lock()
	l, ok := s.locks[tag]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tag] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Package todo implements a todo list on top of the record store.
//
// Entries are stored as "todo <id> <message>". Remove and Edit match an
// entry when either its id or its message equals the query, so a message
// that happens to read like another entry's id is ambiguous; the first match
// in store order (newest first) wins.
package todo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/bryan-buckman/rinton/internal/recordstore"
)

// Entry is one todo item.
type Entry struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
	handle  string
}

// Manager provides list operations.
type Manager struct {
	store *recordstore.Store
}

// NewManager creates a todo manager.
func NewManager(store *recordstore.Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) entries(ctx context.Context) ([]Entry, error) {
	records, err := m.store.Records(ctx, model.TagTodo)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		id, err := strconv.Atoi(rec.Field(0))
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ID: id, Message: rec.Tail(1), handle: rec.Handle})
	}
	return entries, nil
}

// normalize collapses whitespace so a message survives the record round trip.
func normalize(message string) string {
	return strings.Join(strings.Fields(message), " ")
}

// Add appends a new entry with the next id.
func (m *Manager) Add(ctx context.Context, message string) (Entry, error) {
	message = normalize(message)
	if message == "" {
		return Entry{}, fmt.Errorf("%w: empty todo message", model.ErrInvalidInput)
	}

	unlock := m.store.Lock(model.TagTodo)
	defer unlock()

	entries, err := m.entries(ctx)
	if err != nil {
		return Entry{}, err
	}
	next := 1
	for _, e := range entries {
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	handle, err := m.store.Append(ctx, model.TagTodo, strconv.Itoa(next), message)
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: next, Message: message, handle: handle}, nil
}

// match returns the first entry whose id or message equals any query.
//
// The two keys are not disjoint: a todo whose message is "3" matches a query
// for id 3, and whichever entry comes first in store order (newest first)
// wins.
func match(entries []Entry, queries ...string) (Entry, bool) {
	for _, e := range entries {
		id := strconv.Itoa(e.ID)
		for _, q := range queries {
			if q == "" {
				continue
			}
			if id == q || e.Message == q {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// Remove deletes the first entry whose id or message equals any of the
// queries.
func (m *Manager) Remove(ctx context.Context, queries ...string) (Entry, error) {
	keys := make([]string, 0, len(queries))
	for _, q := range queries {
		if q = normalize(q); q != "" {
			keys = append(keys, q)
		}
	}

	unlock := m.store.Lock(model.TagTodo)
	defer unlock()

	entries, err := m.entries(ctx)
	if err != nil {
		return Entry{}, err
	}
	e, ok := match(entries, keys...)
	if !ok {
		return Entry{}, fmt.Errorf("%w: todo %q", model.ErrNotFound, strings.Join(keys, " | "))
	}
	if err := m.store.Delete(ctx, e.handle); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Edit replaces the message of the entry matching id or message. The
// rewritten entry keeps the id of the entry that matched.
func (m *Manager) Edit(ctx context.Context, id, message string) (Entry, error) {
	id = strings.TrimSpace(id)
	message = normalize(message)
	if message == "" {
		return Entry{}, fmt.Errorf("%w: empty todo message", model.ErrInvalidInput)
	}

	unlock := m.store.Lock(model.TagTodo)
	defer unlock()

	entries, err := m.entries(ctx)
	if err != nil {
		return Entry{}, err
	}
	e, ok := match(entries, id, message)
	if !ok {
		return Entry{}, fmt.Errorf("%w: todo %q", model.ErrNotFound, id)
	}
	handle, err := m.store.Update(ctx, e.handle, model.TagTodo, strconv.Itoa(e.ID), message)
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: e.ID, Message: message, handle: handle}, nil
}

// List returns all entries in store order.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	unlock := m.store.Lock(model.TagTodo)
	defer unlock()
	return m.entries(ctx)
}

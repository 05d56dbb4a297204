package channel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bryan-buckman/rinton/internal/model"
)

// ErrInjected is returned by Memory when a failure hook is armed.
var ErrInjected = errors.New("injected failure")

// Memory is an in-process channel backend. Messages are kept in send order
// per channel and ids increase monotonically across all channels.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	channels map[string][]model.Message
	now      func() time.Time

	// Failure hooks for tests. When set, the matching operation fails
	// with ErrInjected.
	FailList   bool
	FailSend   bool
	FailDelete bool
}

// Ensure Memory implements Channel.
var _ Channel = (*Memory)(nil)

// NewMemory creates an empty in-memory channel backend.
func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string][]model.Message),
		now:      time.Now,
	}
}

// ListRecent returns the newest messages first.
func (m *Memory) ListRecent(ctx context.Context, channelID string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailList {
		return nil, fmt.Errorf("list %s: %w", channelID, ErrInjected)
	}
	msgs := m.channels[channelID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	out := make([]model.Message, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

// Send appends a message to the channel.
func (m *Memory) Send(ctx context.Context, channelID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend {
		return "", fmt.Errorf("send %s: %w", channelID, ErrInjected)
	}
	m.nextID++
	id := strconv.FormatInt(m.nextID, 10)
	m.channels[channelID] = append(m.channels[channelID], model.Message{
		ID:        id,
		Text:      text,
		Timestamp: m.now(),
	})
	return id, nil
}

// Edit rewrites a message in place.
func (m *Memory) Edit(ctx context.Context, channelID, messageID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.channels[channelID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Text = text
			return nil
		}
	}
	return fmt.Errorf("edit %s/%s: message not found", channelID, messageID)
}

// Delete removes a message if present.
func (m *Memory) Delete(ctx context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete {
		return fmt.Errorf("delete %s/%s: %w", channelID, messageID, ErrInjected)
	}
	msgs := m.channels[channelID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			m.channels[channelID] = append(msgs[:i:i], msgs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Messages returns a copy of every message in the channel, oldest first.
func (m *Memory) Messages(channelID string) []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message(nil), m.channels[channelID]...)
}

// SetClock overrides the timestamp source for new messages.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

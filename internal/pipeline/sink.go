package pipeline

import (
	"context"
	"strings"

	"github.com/bryan-buckman/rinton/internal/channel"
	"github.com/bryan-buckman/rinton/internal/model"
)

// Sink receives new items.
type Sink interface {
	Deliver(ctx context.Context, item model.Item) error
}

// ChannelSink posts items as plain text messages to one channel.
type ChannelSink struct {
	ch        channel.Channel
	channelID string
}

// NewChannelSink creates a sink that posts to channelID.
func NewChannelSink(ch channel.Channel, channelID string) *ChannelSink {
	return &ChannelSink{ch: ch, channelID: channelID}
}

// Deliver sends one formatted notification.
func (s *ChannelSink) Deliver(ctx context.Context, item model.Item) error {
	_, err := s.ch.Send(ctx, s.channelID, FormatItem(item))
	return err
}

// FormatItem renders an item as a short multi-line notification.
func FormatItem(item model.Item) string {
	var lines []string
	header := item.Title
	if item.Author != "" {
		if header != "" {
			header = item.Author + ": " + header
		} else {
			header = item.Author
		}
	}
	if header != "" {
		lines = append(lines, "**"+header+"**")
	}
	if item.Text != "" {
		lines = append(lines, item.Text)
	}
	if item.Link != "" {
		lines = append(lines, item.Link)
	}
	if item.Footer != "" {
		lines = append(lines, "_"+item.Footer+"_")
	}
	return strings.Join(lines, "\n")
}

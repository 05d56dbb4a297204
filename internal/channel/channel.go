// Package channel defines the chat channel collaborator used as storage and
// as the notification sink.
package channel

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_channel.go -package=mocks github.com/bryan-buckman/rinton/internal/channel Channel

import (
	"context"

	"github.com/bryan-buckman/rinton/internal/model"
)

// Channel is the minimal set of chat operations the bot relies on.
// Channel and message ids are opaque strings (Discord snowflakes in production).
type Channel interface {
	// ListRecent returns at most limit messages, newest first.
	ListRecent(ctx context.Context, channelID string, limit int) ([]model.Message, error)
	// Send posts a new message and returns its id.
	Send(ctx context.Context, channelID, text string) (string, error)
	// Edit replaces the text of an existing message.
	Edit(ctx context.Context, channelID, messageID, text string) error
	// Delete removes a message. Deleting a message that no longer exists
	// is not an error.
	Delete(ctx context.Context, channelID, messageID string) error
}

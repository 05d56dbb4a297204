// Package discord implements the chat channel over the Discord REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bryan-buckman/rinton/internal/channel"
	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/bwmarrin/discordgo"
)

// maxListLimit is the largest page the messages endpoint returns.
const maxListLimit = 100

// Client is a REST-only Discord session.
type Client struct {
	session *discordgo.Session
}

// Ensure Client implements channel.Channel.
var _ channel.Channel = (*Client)(nil)

// New creates a client for a bot token.
func New(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: discord token is required", model.ErrAuthFailed)
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Client{session: s}, nil
}

// NewWithSession wraps an existing session.
func NewWithSession(s *discordgo.Session) *Client {
	return &Client{session: s}
}

// ListRecent returns up to limit messages, newest first.
func (c *Client) ListRecent(ctx context.Context, channelID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	msgs, err := c.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, model.Message{ID: m.ID, Text: m.Content, Timestamp: m.Timestamp})
	}
	return out, nil
}

// Send posts a message.
func (c *Client) Send(ctx context.Context, channelID, text string) (string, error) {
	m, err := c.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// Edit rewrites a message.
func (c *Client) Edit(ctx context.Context, channelID, messageID, text string) error {
	_, err := c.session.ChannelMessageEdit(channelID, messageID, text, discordgo.WithContext(ctx))
	return err
}

// Delete removes a message. Unknown messages are treated as deleted.
func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	err := c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return err
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

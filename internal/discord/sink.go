package discord

import (
	"context"

	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/bwmarrin/discordgo"
)

// Embed field limits.
const (
	maxDescription = 4096
	maxTitle       = 256
)

// EmbedSink delivers items as embeds to one channel.
type EmbedSink struct {
	client    *Client
	channelID string
}

// NewEmbedSink creates a sink posting to channelID.
func NewEmbedSink(client *Client, channelID string) *EmbedSink {
	return &EmbedSink{client: client, channelID: channelID}
}

// Deliver sends one embed.
func (s *EmbedSink) Deliver(ctx context.Context, item model.Item) error {
	_, err := s.client.session.ChannelMessageSendEmbed(s.channelID, BuildEmbed(item), discordgo.WithContext(ctx))
	return err
}

// BuildEmbed lays out an item as author, title, description and footer.
func BuildEmbed(item model.Item) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       clip(item.Title, maxTitle),
		URL:         item.Link,
		Description: clip(item.Text, maxDescription),
	}
	if item.Author != "" {
		e.Author = &discordgo.MessageEmbedAuthor{
			Name:    item.Author,
			IconURL: item.AvatarURL,
		}
	}
	if item.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: item.Footer}
	}
	return e
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Package model defines shared data structures.
package model

import (
	"strings"
	"time"
)

// Persisted record tags.
const (
	TagTodo    = "todo"
	TagRSSLink = "rss_link"
)

// WatermarkLayout is the timestamp format stored in watermark records.
const WatermarkLayout = "2006-01-02 15:04:05"

// WatermarkTag returns the record tag holding the watermark for a feed,
// e.g. "rss_last_date".
func WatermarkTag(feed string) string {
	return feed + "_last_date"
}

// Message is one chat message as returned by a channel.
type Message struct {
	ID        string
	Text      string
	Timestamp time.Time
}

// Record is a tagged, whitespace-delimited line stored as one message.
// Handle is the id of the message carrying it.
type Record struct {
	Handle    string
	Tag       string
	Fields    []string
	Timestamp time.Time
}

// FormatRecord serializes a tag and its fields into one line.
func FormatRecord(tag string, fields ...string) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, tag)
	for _, f := range fields {
		if f == "" {
			continue
		}
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

// ParseRecord splits a message into its tag and fields.
func ParseRecord(msg Message) Record {
	tokens := strings.Fields(msg.Text)
	rec := Record{Handle: msg.ID, Timestamp: msg.Timestamp}
	if len(tokens) == 0 {
		return rec
	}
	rec.Tag = tokens[0]
	rec.Fields = tokens[1:]
	return rec
}

// Field returns the i-th field or "" when the record is shorter.
func (r Record) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Tail joins the fields from i to the end with single spaces.
func (r Record) Tail(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return strings.Join(r.Fields[i:], " ")
}

// Item is a normalized entry from any feed source.
type Item struct {
	Source    string // adapter name, e.g. "rss"
	Author    string
	AvatarURL string
	Title     string
	Text      string
	Link      string
	Footer    string // display line, e.g. localized creation time
	CreatedAt time.Time
}

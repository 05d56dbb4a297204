// Package opml imports and exports the RSS source list as OPML.
package opml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bryan-buckman/rinton/internal/model"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (folder or feed).
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// FeedEntry is one feed found in a document. Folders are flattened away;
// the source list has no hierarchy.
type FeedEntry struct {
	Title string
	URL   string
}

// Parse reads an OPML document and returns its feeds in document order,
// each URL once.
func Parse(r io.Reader) ([]FeedEntry, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode opml: %v", model.ErrInvalidInput, err)
	}
	var entries []FeedEntry
	seen := make(map[string]bool)
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if o.XMLURL == "" {
				walk(o.Outlines)
				continue
			}
			if seen[o.XMLURL] {
				continue
			}
			seen[o.XMLURL] = true
			title := o.Title
			if title == "" {
				title = o.Text
			}
			entries = append(entries, FeedEntry{Title: title, URL: o.XMLURL})
		}
	}
	walk(doc.Body.Outlines)
	return entries, nil
}

// Export renders entries as a flat OPML 2.0 document.
func Export(title string, entries []FeedEntry, created time.Time) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: created.Format(time.RFC1123Z),
		},
	}
	for _, e := range entries {
		text := e.Title
		if text == "" {
			text = e.URL
		}
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Text:   text,
			Title:  e.Title,
			Type:   "rss",
			XMLURL: e.URL,
		})
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}

// LinkAdder registers feed sources. rss.Fetcher satisfies it.
type LinkAdder interface {
	AddLink(ctx context.Context, feedURL string) (bool, error)
}

// ImportResult summarizes an import.
type ImportResult struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Invalid []string `json:"invalid,omitempty"`
	// Rejected lists feeds left out because the source limit was reached.
	Rejected []string `json:"rejected,omitempty"`
}

// Import parses r and adds every feed not already present. Invalid URLs are
// reported and skipped; store failures abort the import. Once the source
// limit is hit the remaining feeds are reported as rejected.
func Import(ctx context.Context, dst LinkAdder, r io.Reader) (ImportResult, error) {
	var res ImportResult
	entries, err := Parse(r)
	if err != nil {
		return res, err
	}
	for i, e := range entries {
		added, err := dst.AddLink(ctx, e.URL)
		switch {
		case errors.Is(err, model.ErrLimitReached):
			slog.Warn("opml import stopped at source limit", "remaining", len(entries)-i)
			for _, rest := range entries[i:] {
				res.Rejected = append(res.Rejected, rest.URL)
			}
			return res, nil
		case errors.Is(err, model.ErrInvalidInput):
			slog.Warn("skipping opml entry", "url", e.URL, "error", err)
			res.Invalid = append(res.Invalid, e.URL)
		case err != nil:
			return res, fmt.Errorf("import %s: %w", e.URL, err)
		case added:
			res.Added++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

package atproto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bryan-buckman/rinton/internal/model"
)

// Name is the feed name used for the adapter and its watermark.
const Name = "atproto"

// CreatedAtLayout is the timestamp format of post records.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z"

// displayZone is the offset used for the footer timestamp.
var displayZone = time.FixedZone("JST", 9*60*60)

type author struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type record struct {
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

type post struct {
	URI    string `json:"uri"`
	CID    string `json:"cid"`
	Author author `json:"author"`
	Record record `json:"record"`
}

type feedViewPost struct {
	Post post `json:"post"`
}

type feedResponse struct {
	Feed   []feedViewPost `json:"feed"`
	Cursor string         `json:"cursor"`
}

// Config holds the adapter settings.
type Config struct {
	Name       string // feed name, defaults to Name
	BaseURL    string
	Identifier string
	Password   string
	FeedURI    string // at:// uri of the feed generator
	Client     *http.Client
}

// Client is the social feed adapter. It fetches one feed with one token;
// any failure, including a single unparsable post, fails the whole fetch.
type Client struct {
	name    string
	baseURL string
	feedURI string
	token   string
	client  *http.Client
}

// New logs in once and returns a ready adapter.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.FeedURI == "" {
		return nil, fmt.Errorf("%w: feed uri is required", model.ErrInvalidInput)
	}
	session := NewSession(cfg.BaseURL, cfg.Client)
	token, err := session.Login(ctx, cfg.Identifier, cfg.Password)
	if err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = Name
	}
	return &Client{
		name:    name,
		baseURL: session.BaseURL,
		feedURI: cfg.FeedURI,
		token:   token,
		client:  session.client,
	}, nil
}

// Name implements pipeline.Adapter.
func (c *Client) Name() string {
	return c.name
}

// Fetch returns the feed's posts in the order the API gives them.
func (c *Client) Fetch(ctx context.Context) ([]model.Item, error) {
	endpoint := c.baseURL + "/xrpc/app.bsky.feed.getFeed?feed=" + url.QueryEscape(c.feedURI)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", model.ErrFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get feed: %v", model.ErrFetchFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: get feed: status %d: %s", model.ErrFetchFailed, resp.StatusCode, string(raw))
	}

	var out feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", model.ErrFetchFailed, err)
	}

	items := make([]model.Item, 0, len(out.Feed))
	for _, fv := range out.Feed {
		item, err := toItem(fv.Post)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func toItem(p post) (model.Item, error) {
	created, err := time.Parse(CreatedAtLayout, p.Record.CreatedAt)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: parse createdAt %q of %s: %v", model.ErrFetchFailed, p.Record.CreatedAt, p.URI, err)
	}
	name := p.Author.DisplayName
	if name == "" {
		name = p.Author.Handle
	}
	return model.Item{
		Source:    Name,
		Author:    name,
		AvatarURL: p.Author.Avatar,
		Text:      p.Record.Text,
		Link:      postURL(p),
		Footer:    created.In(displayZone).Format(model.WatermarkLayout),
		CreatedAt: created,
	}, nil
}

// postURL maps at://<did>/app.bsky.feed.post/<rkey> to its web URL.
func postURL(p post) string {
	rest, ok := strings.CutPrefix(p.URI, "at://")
	if !ok {
		return ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "app.bsky.feed.post" {
		return ""
	}
	who := p.Author.Handle
	if who == "" {
		who = parts[0]
	}
	return "https://bsky.app/profile/" + who + "/post/" + parts[2]
}

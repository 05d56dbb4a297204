// Package atproto provides the social feed adapter for AT Protocol
// (Bluesky) custom feeds.
package atproto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bryan-buckman/rinton/internal/model"
)

// DefaultBaseURL is the public Bluesky PDS.
const DefaultBaseURL = "https://bsky.social"

type createSessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type createSessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	Handle    string `json:"handle"`
	DID       string `json:"did"`
}

// Session obtains access tokens. A token is requested once per adapter and
// never refreshed, so a long-running process keeps using it until the
// remote side expires it.
type Session struct {
	BaseURL string
	client  *http.Client
}

// NewSession creates a session manager. A nil client uses http.DefaultClient.
func NewSession(baseURL string, client *http.Client) *Session {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{BaseURL: baseURL, client: client}
}

// Login exchanges credentials for an access token.
func (s *Session) Login(ctx context.Context, identifier, password string) (string, error) {
	if identifier == "" || password == "" {
		return "", fmt.Errorf("%w: identifier and password are required", model.ErrAuthFailed)
	}

	body, err := json.Marshal(createSessionRequest{Identifier: identifier, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	url := s.BaseURL + "/xrpc/com.atproto.server.createSession"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", model.ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: create session: %v", model.ErrAuthFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: create session: status %d: %s", model.ErrAuthFailed, resp.StatusCode, string(raw))
	}

	var out createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode session: %v", model.ErrAuthFailed, err)
	}
	if out.AccessJwt == "" {
		return "", fmt.Errorf("%w: empty access token", model.ErrAuthFailed)
	}
	return out.AccessJwt, nil
}

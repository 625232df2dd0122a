// Package twitch turns channel-point redemptions into vote events.
package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Helix API constants.
const (
	defaultHelixURL    = "https://api.twitch.tv/helix"
	defaultHTTPTimeout = 10 * time.Second

	statusUnfulfilled = "UNFULFILLED"
	statusFulfilled   = "FULFILLED"
)

// Redemption is one unfulfilled channel-point redemption.
type Redemption struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserInput string `json:"user_input"`
}

// Client is a thin Helix API client covering the three calls the vote
// pipeline needs: listing redemptions, fulfilling them, and chatting.
type Client struct {
	clientID      string
	token         string
	broadcasterID string
	baseURL       string
	client        *http.Client
}

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewClient creates a Helix client for one broadcaster.
func NewClient(clientID, token, broadcasterID string, opts ...ClientOption) *Client {
	c := &Client{
		clientID:      clientID,
		token:         token,
		broadcasterID: broadcasterID,
		baseURL:       defaultHelixURL,
		client:        &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Redemptions lists unfulfilled redemptions for one custom reward.
func (c *Client) Redemptions(ctx context.Context, rewardID string) ([]Redemption, error) {
	q := url.Values{}
	q.Set("broadcaster_id", c.broadcasterID)
	q.Set("reward_id", rewardID)
	q.Set("status", statusUnfulfilled)

	var out struct {
		Data []Redemption `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/channel_points/custom_rewards/redemptions", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list redemptions for reward %s: %w", rewardID, err)
	}
	return out.Data, nil
}

// Fulfill marks one redemption as fulfilled so points are consumed.
func (c *Client) Fulfill(ctx context.Context, rewardID, redemptionID string) error {
	q := url.Values{}
	q.Set("broadcaster_id", c.broadcasterID)
	q.Set("reward_id", rewardID)
	q.Set("id", redemptionID)

	body := map[string]string{"status": statusFulfilled}
	if err := c.do(ctx, http.MethodPatch, "/channel_points/custom_rewards/redemptions", q, body, nil); err != nil {
		return fmt.Errorf("fulfill redemption %s: %w", redemptionID, err)
	}
	return nil
}

// SendChat posts a message to the broadcaster's chat as the broadcaster.
func (c *Client) SendChat(ctx context.Context, message string) error {
	body := map[string]string{
		"broadcaster_id": c.broadcasterID,
		"sender_id":      c.broadcasterID,
		"message":        message,
	}
	if err := c.do(ctx, http.MethodPost, "/chat/messages", nil, body, nil); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

// do runs one authenticated Helix request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call helix: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrRewardInaccessible, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnexpectedStatus, resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrorDescription is the backend's structured failure payload.
type ErrorDescription struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements error so a populated envelope error can be returned
// directly.
func (e *ErrorDescription) Error() string {
	return fmt.Sprintf("remote error %s: %s", e.Code, e.Message)
}

// result is the backend's response envelope. A populated error field is
// treated identically to a transport failure: the item did not succeed.
type result struct {
	Data  json.RawMessage   `json:"data,omitempty"`
	Error *ErrorDescription `json:"error,omitempty"`
}

// Client is the shared HTTP plumbing for all entity repositories.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenSource
}

// ClientOption configures optional Client behaviour.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client. The default carries a
// 10 second timeout; per-call timeouts belong here, not in the sync engine.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient constructs a Client for the given backend base URL.
func NewClient(baseURL string, tokens *TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repository returns the RemoteRepository for one REST resource, e.g.
// "workouts".
func (c *Client) Repository(resource string) *EntityRepository {
	return &EntityRepository{client: c, resource: resource}
}

// EntityRepository replays mutations against one backend resource. The
// backend treats create and update as upserts, so a replayed item whose
// earlier attempt actually landed is harmless.
type EntityRepository struct {
	client   *Client
	resource string
}

// Create issues POST /v1/<resource> with the queued payload.
func (r *EntityRepository) Create(ctx context.Context, payload json.RawMessage) error {
	return r.client.do(ctx, http.MethodPost, fmt.Sprintf("/v1/%s", r.resource), payload)
}

// Update issues PUT /v1/<resource>/<id> with the queued payload.
func (r *EntityRepository) Update(ctx context.Context, id string, payload json.RawMessage) error {
	return r.client.do(ctx, http.MethodPut, fmt.Sprintf("/v1/%s/%s", r.resource, id), payload)
}

// Delete issues DELETE /v1/<resource>/<id>.
func (r *EntityRepository) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/%s/%s", r.resource, id), nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload json.RawMessage) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	var envelope result
	if len(raw) > 0 {
		// A malformed body on a 2xx should not fail the item; only a decoded
		// error field or a bad status does.
		_ = json.Unmarshal(raw, &envelope)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return nil
}

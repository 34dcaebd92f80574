// Package remote is the HTTP/JSON surface of the remote store, the
// authoritative backend this worker mirrors. Only the operations the offline
// core needs are exposed: the three create calls the outbox replays, the
// push-subscription upsert, and a health probe for the connectivity watcher.
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

// Subscription is the wire form of one push subscription row, keyed
// remotely by Endpoint (upsert semantics: at most one row per endpoint).
type Subscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
	UA       string `json:"ua"`
}

// Client talks to the remote store's REST surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Tests use it; so does
// the worker to share a transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New constructs a Client. A non-empty token is attached to every request
// as a bearer credential via a wrapping RoundTripper.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if token != "" {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *c.http
		wrapped.Transport = &bearerTransport{base: base, token: token}
		c.http = &wrapped
	}
	return c
}

// bearerTransport adds the Authorization header to every outbound request.
type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(cloned)
}

func (c *Client) CreateNote(ctx context.Context, payload json.RawMessage) error {
	return c.post(ctx, "/rest/v1/notes", payload)
}

func (c *Client) CreateBucketItem(ctx context.Context, payload json.RawMessage) error {
	return c.post(ctx, "/rest/v1/bucket_items", payload)
}

func (c *Client) CreateEvent(ctx context.Context, payload json.RawMessage) error {
	return c.post(ctx, "/rest/v1/events", payload)
}

// UpsertPushSubscription stores sub keyed by its endpoint. Repeating the
// call with the same endpoint and different keys must leave exactly one row
// reflecting the later keys; the merge-duplicates preference asks the store
// for exactly that.
func (c *Client) UpsertPushSubscription(ctx context.Context, sub Subscription) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v1/push_subscriptions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates")
	return c.do(req)
}

// Ping probes the health endpoint. A nil error means the remote store is
// reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote store returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

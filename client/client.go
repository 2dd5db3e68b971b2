// Package client talks to a running healthmonitor server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/healthmonitor/health"
)

var (
	// ErrUnreachable indicates the request never got an HTTP answer.
	ErrUnreachable = errors.New("client: server unreachable")

	// ErrUnexpectedResponse indicates the server answered with a status or
	// body the client does not understand.
	ErrUnexpectedResponse = errors.New("client: unexpected response")

	// ErrRejected indicates the server refused a mutation with 400.
	ErrRejected = errors.New("client: request rejected")
)

// Client is an HTTP client for the status service.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// HTTP client, so a client passed to WithHTTPClient is never modified.
// Default: 5 seconds
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

// New creates a client for the server at baseURL, e.g. http://127.0.0.1:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Info fetches the identity of the server.
func (c *Client) Info(ctx context.Context) (health.Info, error) {
	var info health.Info
	resp, err := c.do(ctx, http.MethodGet, "/info", nil)
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("%w: GET /info returned %s", ErrUnexpectedResponse, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("%w: decode /info: %v", ErrUnexpectedResponse, err)
	}
	return info, nil
}

// IsRunning reports whether a server answering at the base URL identifies
// itself as want. Any error counts as not running.
func (c *Client) IsRunning(ctx context.Context, want health.Info) bool {
	info, err := c.Info(ctx)
	if err != nil {
		return false
	}
	return info == want
}

// Status fetches the current snapshot. Both 200 and 503 carry a snapshot.
func (c *Client) Status(ctx context.Context) (health.Status, error) {
	resp, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return health.Status{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return health.Status{}, fmt.Errorf("%w: GET /status returned %s", ErrUnexpectedResponse, resp.Status)
	}
	return decodeStatus(resp.Body)
}

// SetHealth sets the health state, appending message when it is non-empty.
func (c *Client) SetHealth(ctx context.Context, state health.State, message string) (health.Status, error) {
	patch := health.StatusPatch{Health: ptr(state.String())}
	if message != "" {
		patch.Message = &message
	}
	return c.patch(ctx, patch)
}

// SetPhase sets the deployment phase.
func (c *Client) SetPhase(ctx context.Context, phase health.Phase) (health.Status, error) {
	return c.patch(ctx, health.StatusPatch{Phase: ptr(phase.String())})
}

// AppendMessage appends a message without changing the state.
func (c *Client) AppendMessage(ctx context.Context, message string) (health.Status, error) {
	return c.patch(ctx, health.StatusPatch{Message: &message})
}

func (c *Client) patch(ctx context.Context, patch health.StatusPatch) (health.Status, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return health.Status{}, fmt.Errorf("encode patch: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPatch, "/status", body)
	if err != nil {
		return health.Status{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeStatus(resp.Body)
	case http.StatusBadRequest:
		var e health.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return health.Status{}, fmt.Errorf("%w: %s", ErrRejected, resp.Status)
		}
		return health.Status{}, fmt.Errorf("%w: %s", ErrRejected, e.Error)
	default:
		return health.Status{}, fmt.Errorf("%w: PATCH /status returned %s", ErrUnexpectedResponse, resp.Status)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	return resp, nil
}

func decodeStatus(r io.Reader) (health.Status, error) {
	var status health.Status
	if err := json.NewDecoder(r).Decode(&status); err != nil {
		return health.Status{}, fmt.Errorf("%w: decode status: %v", ErrUnexpectedResponse, err)
	}
	if status.Messages == nil {
		status.Messages = []string{}
	}
	return status, nil
}

func ptr[T any](v T) *T {
	return &v
}

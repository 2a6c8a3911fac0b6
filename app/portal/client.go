package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 15 * time.Second
)

type ClientOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
}

// Client wraps the backend REST API. Every method performs exactly one
// round trip; nothing is cached, batched, retried or deduplicated.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

func NewClient(baseURL string, opts ClientOptions) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		userAgent:  opts.UserAgent,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	token       string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(timeoutCtx, r.method, endpoint, r.body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", r.op, err)
	}

	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("Backend request failed", "op", r.op, "method", r.method, "path", r.path, "error", err)
		return &NetworkError{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: r.op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	slog.Debug("Backend request",
		"op", r.op,
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: r.op, StatusCode: resp.StatusCode, Detail: parseDetail(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", r.op, err)
	}

	return nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, token string, out any) error {
	return c.do(ctx, request{op: op, method: http.MethodGet, path: path, query: query, token: token}, out)
}

package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/everstacklabs/modelsync/internal/cache"
)

// DefaultTimeout bounds every provider call.
const DefaultTimeout = 30 * time.Second

const userAgent = "modelsync/1.0 (+https://github.com/everstacklabs/modelsync)"

// Client is an HTTP client with caching, rate limiting, and conditional fetch.
type Client struct {
	http      *http.Client
	cache     *cache.FileCache
	limiter   *rate.Limiter
	noCache   bool
	userAgent string
}

// Option configures the Client.
type Option func(*Client)

// WithCache enables file-based caching.
func WithCache(c *cache.FileCache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps float64) Option {
	return func(cl *Client) {
		if rps > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithNoCache disables caching.
func WithNoCache() Option {
	return func(cl *Client) { cl.noCache = true }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header. Empty keeps the default.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// New creates a new HTTP client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: userAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response wraps an HTTP response body and metadata.
type Response struct {
	Body       []byte
	StatusCode int
	FromCache  bool
}

// StatusError is returned for 4xx/5xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("HTTP GET %s: status %d: %s", e.URL, e.StatusCode, body)
}

// WithQuery appends params to rawURL.
func WithQuery(rawURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Get performs an HTTP GET with optional caching and conditional fetch.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	// Rate limit
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	// Check cache
	key := cacheKey(url, headers)
	var staleEntry *cache.Entry
	if c.cache != nil && !c.noCache {
		entry, fresh := c.cache.Get(key)
		if fresh {
			return &Response{Body: entry.Body, StatusCode: entry.StatusCode, FromCache: true}, nil
		}
		staleEntry = entry // Use for conditional fetch
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	// Conditional fetch headers
	if staleEntry != nil {
		if staleEntry.ETag != "" {
			req.Header.Set("If-None-Match", staleEntry.ETag)
		}
		if staleEntry.LastMod != "" {
			req.Header.Set("If-Modified-Since", staleEntry.LastMod)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	// Not modified, refresh cache TTL
	if resp.StatusCode == http.StatusNotModified && staleEntry != nil {
		if c.cache != nil {
			_ = c.cache.Set(key, staleEntry)
		}
		return &Response{Body: staleEntry.Body, StatusCode: staleEntry.StatusCode, FromCache: true}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	// Store in cache
	if c.cache != nil && !c.noCache {
		_ = c.cache.Set(key, &cache.Entry{
			Body:       body,
			ETag:       resp.Header.Get("ETag"),
			LastMod:    resp.Header.Get("Last-Modified"),
			StatusCode: resp.StatusCode,
		})
	}

	return &Response{Body: body, StatusCode: resp.StatusCode}, nil
}

// cacheKey separates cached responses of the same URL fetched with
// different credentials.
func cacheKey(url string, headers map[string]string) string {
	if auth := headers["Authorization"]; auth != "" {
		return url + "\x00" + auth
	}
	return url
}

// GetJSON fetches url and decodes the body into a generic value
// (map[string]any, []any, ...).
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string) (any, error) {
	h := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}

	resp, err := c.Get(ctx, url, h)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return nil, fmt.Errorf("decoding JSON from %s: %w", url, err)
	}
	return v, nil
}

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultUserAgent identifies the aggregator to feed publishers
	DefaultUserAgent = "feedhub/1.0"

	// DefaultMaxBodyBytes caps how much of a feed body is read
	DefaultMaxBodyBytes int64 = 10 << 20

	// FeedAccept prefers feed media types but accepts anything
	FeedAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.8"
)

// ErrBodyTooLarge is returned when a response exceeds MaxBodyBytes
var ErrBodyTooLarge = errors.New("response body too large")

// Doer executes HTTP requests. *http.Client and *Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client
type Options struct {
	UserAgent    string
	Timeout      time.Duration // Per-request timeout, 0 disables it
	MaxRedirects int           // 0 means the default of 10
	MaxBodyBytes int64         // 0 means DefaultMaxBodyBytes
	Transport    http.RoundTripper
}

// Client wraps an http.Client with feed-friendly headers and limits
type Client struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// New creates a new HTTP client with the given options
func New(opts Options) *Client {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: opts.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &Client{
		client:       client,
		userAgent:    userAgent,
		maxBodyBytes: maxBody,
	}
}

// Do executes an HTTP request with the client's headers
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	return c.client.Do(req)
}

// Get is a convenience method for feed GET requests
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// MaxBodyBytes returns the configured body limit
func (c *Client) MaxBodyBytes() int64 {
	return c.maxBodyBytes
}

// setHeaders fills in headers the caller did not set
func (c *Client) setHeaders(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", FeedAccept)
	}
}

// ReadBody reads at most limit bytes from r.
// Returns ErrBodyTooLarge if the body is longer than limit.
func ReadBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}

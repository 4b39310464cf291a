package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
)

// Retry bounds how often a throttled or failing request is repeated.
// Delays grow from Min to Max with jitter.
type Retry struct {
	Attempts int // repeats after the first request; 0 disables retrying
	Min      time.Duration
	Max      time.Duration
}

// DefaultRetry matches the venue's public rate limit window.
func DefaultRetry() Retry {
	return Retry{Attempts: defaultRetries, Min: time.Second, Max: 15 * time.Second}
}

// Client is a Bitfinex v2 public REST client. It is safe for concurrent use.
type Client struct {
	root   string
	hc     *http.Client
	retry  Retry
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// NewClient returns a client for the REST root, e.g. https://api-pub.bitfinex.com/v2.
func NewClient(root string, opts ...Option) *Client {
	c := &Client{
		root:   root,
		hc:     &http.Client{Timeout: defaultTimeout},
		retry:  DefaultRetry(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout bounds a single HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithRetry replaces the retry policy.
func WithRetry(r Retry) Option {
	return func(c *Client) { c.retry = r }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithProxy sends every request through the given agent.
// A nil URL keeps the default transport.
func WithProxy(agent *url.URL) Option {
	return func(c *Client) {
		if agent == nil {
			return
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.Proxy = http.ProxyURL(agent)
		c.hc.Transport = tr
	}
}

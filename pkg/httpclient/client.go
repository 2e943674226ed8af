package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Middleware wraps a RoundTripper.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type namedMiddleware struct {
	name string
	mw   Middleware
}

// Client is an HTTP client with a named middleware chain.
// It is safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	base    http.RoundTripper
	chain   []namedMiddleware
	current http.RoundTripper

	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the base transport (default: http.DefaultTransport).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// WithTimeout sets the overall request timeout (default: 15s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client. Relative request URLs are resolved against
// baseURL; an empty baseURL leaves them as they are.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		base:   http.DefaultTransport,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: slog.Default().With("component", "httpclient"),
	}
	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("httpclient: parse base URL: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("httpclient: base URL %q must be absolute", baseURL)
		}
		c.baseURL = u
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current = c.base
	c.http.Transport = RoundTripperFunc(c.roundTrip)
	return c, nil
}

// Use appends mw to the chain under name. The first middleware installed
// is the outermost. It returns false, leaving the chain unchanged, when
// name is already installed.
func (c *Client) Use(name string, mw Middleware) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.chain {
		if m.name == name {
			c.logger.Debug("middleware already installed", "name", name)
			return false
		}
	}
	c.chain = append(c.chain, namedMiddleware{name: name, mw: mw})
	c.rebuild()
	return true
}

// Installed reports whether a middleware is installed under name.
func (c *Client) Installed(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.chain {
		if m.name == name {
			return true
		}
	}
	return false
}

// Middlewares returns installed middleware names, outermost first.
func (c *Client) Middlewares() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.chain))
	for i, m := range c.chain {
		names[i] = m.name
	}
	return names
}

// rebuild composes the chain. Caller must hold c.mu.
func (c *Client) rebuild() {
	rt := c.base
	for i := len(c.chain) - 1; i >= 0; i-- {
		rt = c.chain[i].mw(rt)
	}
	c.current = rt
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	c.mu.RLock()
	rt := c.current
	c.mu.RUnlock()
	return rt.RoundTrip(req)
}

// HTTPClient returns a *http.Client backed by the middleware chain.
// Middleware installed later applies to it as well.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// BaseURL returns the base URL, or nil.
func (c *Client) BaseURL() *url.URL {
	if c.baseURL == nil {
		return nil
	}
	u := *c.baseURL
	return &u
}

// NewRequest builds a request for target, resolved against the base URL.
func (c *Client) NewRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	rawURL := target
	if c.baseURL != nil && strings.HasPrefix(target, "/") {
		rawURL = c.baseURL.String() + target
	}
	return http.NewRequestWithContext(ctx, method, rawURL, body)
}

// Do sends req through the middleware chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// Get issues a GET for target.
func (c *Client) Get(ctx context.Context, target string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

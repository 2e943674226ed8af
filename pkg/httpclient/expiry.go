package httpclient

import (
	"net/http"
	"strings"

	"github.com/vango-dev/authgate/pkg/routes"
)

// ExpiryMiddlewareName is the chain name of the expiry observer.
const ExpiryMiddlewareName = "expiry-observer"

// Signaler receives session-expired signals.
type Signaler interface {
	Signal()
}

// SignalerFunc adapts a function to a Signaler.
type SignalerFunc func()

// Signal calls f.
func (f SignalerFunc) Signal() { f() }

// ExpiryPolicy decides which responses mean the session expired.
type ExpiryPolicy struct {
	// APIPrefix marks protected API paths (default "/api/").
	APIPrefix string
	// Exempt lists endpoints whose 401s are expected, such as login and
	// refresh.
	Exempt []string
}

// DefaultExpiryPolicy observes /api/ and exempts the login and refresh
// endpoints.
func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{
		APIPrefix: "/api/",
		Exempt:    []string{"/api/auth/login", "/api/auth/refresh"},
	}
}

// Expired reports whether a response with status to req means the
// session expired.
func (p ExpiryPolicy) Expired(req *http.Request, status int) bool {
	if status != http.StatusUnauthorized || req == nil || req.URL == nil {
		return false
	}
	path, err := routes.Canonicalize(req.URL.EscapedPath())
	if err != nil {
		path = req.URL.Path
	}
	prefix := p.APIPrefix
	if prefix == "" {
		prefix = "/api/"
	}
	if !strings.HasPrefix(path+"/", prefix) {
		return false
	}
	for _, exempt := range p.Exempt {
		if path == strings.TrimSuffix(exempt, "/") {
			return false
		}
	}
	return true
}

// ExpiryObserver returns middleware that signals s for every response the
// policy classifies as expired. The response is passed through untouched.
// A nil Signaler makes the middleware a pass-through.
func ExpiryObserver(policy ExpiryPolicy, s Signaler) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if s == nil {
			return next
		}
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err == nil && resp != nil && policy.Expired(req, resp.StatusCode) {
				s.Signal()
			}
			return resp, err
		})
	}
}

// ObserveExpiry installs the expiry observer. It returns false when an
// observer is already installed.
func (c *Client) ObserveExpiry(policy ExpiryPolicy, s Signaler) bool {
	return c.Use(ExpiryMiddlewareName, ExpiryObserver(policy, s))
}

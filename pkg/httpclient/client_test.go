package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func tagMiddleware(tag string, order *[]string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			*order = append(*order, tag)
			return next.RoundTrip(req)
		})
	}
}

func TestUseIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	var order []string
	if !c.Use("a", tagMiddleware("a", &order)) {
		t.Fatal("first Use(a) = false")
	}
	if c.Use("a", tagMiddleware("a-again", &order)) {
		t.Fatal("second Use(a) = true")
	}
	c.Use("b", tagMiddleware("b", &order))

	resp, err := c.Get(context.Background(), "/ping")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	resp.Body.Close()

	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("middleware order = %v, want [a b]", order)
	}
	if got := strings.Join(c.Middlewares(), ","); got != "a,b" {
		t.Fatalf("Middlewares() = %q", got)
	}
	if !c.Installed("b") || c.Installed("c") {
		t.Fatal("Installed() mismatch")
	}
}

func TestHTTPClientSeesLaterMiddleware(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := New("")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	hc := c.HTTPClient()

	var order []string
	c.Use("late", tagMiddleware("late", &order))

	resp, err := hc.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	resp.Body.Close()
	if len(order) != 1 {
		t.Fatalf("late middleware ran %d times, want 1", len(order))
	}
}

func TestNewRequestResolvesBaseURL(t *testing.T) {
	c, err := New("https://auth.example.com/")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	req, err := c.NewRequest(context.Background(), http.MethodGet, "/api/auth/verify", nil)
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	if got := req.URL.String(); got != "https://auth.example.com/api/auth/verify" {
		t.Fatalf("URL = %q", got)
	}

	req, err = c.NewRequest(context.Background(), http.MethodGet, "https://other.example.com/x", nil)
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	if req.URL.Host != "other.example.com" {
		t.Fatalf("absolute URL rewritten to %q", req.URL)
	}
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	if _, err := New("auth.example.com"); err == nil {
		t.Fatal("expected error for relative base URL")
	}
}

func TestTransportOption(t *testing.T) {
	c, err := New("http://stub", WithTransport(RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTeapot,
			Body:       io.NopCloser(strings.NewReader("short and stout")),
			Request:    req,
		}, nil
	})))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	resp, err := c.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/authgate/pkg/metrics"
)

// Instrument returns middleware recording request counts and latency.
func Instrument(m *metrics.Metrics) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			status := 0
			if err == nil && resp != nil {
				status = resp.StatusCode
			}
			m.RecordRequest(req.Method, status, time.Since(start))
			return resp, err
		})
	}
}

// Logging returns middleware that logs each request at debug level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default().With("component", "httpclient")
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			if err != nil {
				logger.Debug("request failed",
					"method", req.Method,
					"path", req.URL.Path,
					"duration", time.Since(start),
					"error", err)
				return resp, err
			}
			logger.Debug("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", resp.StatusCode,
				"duration", time.Since(start))
			return resp, nil
		})
	}
}

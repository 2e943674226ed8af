package domainrouter

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Viewport width client hint headers, checked in order.
const (
	ViewportWidthHeader    = "Viewport-Width"
	SecViewportWidthHeader = "Sec-CH-Viewport-Width"
)

// RequestFrom extracts routing input from an HTTP request. Clients that
// send no viewport hint are classified by user agent alone.
func RequestFrom(req *http.Request) Request {
	return Request{
		Host:          req.Host,
		Path:          req.URL.EscapedPath(),
		Query:         req.URL.RawQuery,
		Fragment:      req.URL.EscapedFragment(),
		UserAgent:     req.UserAgent(),
		ViewportWidth: viewportWidth(req.Header),
	}
}

func viewportWidth(h http.Header) int {
	for _, name := range []string{ViewportWidthHeader, SecViewportWidthHeader} {
		v := strings.TrimSpace(h.Get(name))
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || math.IsInf(f, 0) {
			continue
		}
		return int(math.Ceil(f))
	}
	return 0
}

// Middleware applies the router before the wrapped handler runs.
// Redirects use 307 so the method and body survive.
func (r *Router) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			h := w.Header()
			h.Add("Vary", "User-Agent")
			h.Add("Vary", ViewportWidthHeader)
			h.Set("Accept-CH", ViewportWidthHeader+", "+SecViewportWidthHeader)

			d := r.Decide(RequestFrom(req))
			if d.Redirect() {
				r.logger.Debug("domain redirect",
					"rule", d.Rule.String(),
					"host", req.Host,
					"path", req.URL.Path,
					"location", d.Location)
				http.Redirect(w, req, d.Location, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

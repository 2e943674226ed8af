package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/authgate/internal/config"
	"github.com/vango-dev/authgate/internal/errors"
	"github.com/vango-dev/authgate/pkg/domainrouter"
	"github.com/vango-dev/authgate/pkg/metrics"
)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the edge server",
		Long: `Run the edge server in front of the application.

Every request is classified by host, device and route, and redirected to
the main, admin or mobile domain before the application sees it. Requests
that stay are proxied to server.upstream.

Examples:
  authgate serve --upstream http://127.0.0.1:3000
  authgate serve --listen :9000 --main-host example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(metrics.WithRegistry(reg))

			router, err := newRouter(cfg, m, logger)
			if err != nil {
				return err
			}
			handler, err := newEdgeHandler(cfg, router, reg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			success("Edge server listening on %s", cfg.Server.Listen)
			if cfg.Server.Upstream != "" {
				info("Proxying to %s", cfg.Server.Upstream)
			} else {
				warn("No upstream configured; requests that are not redirected get 404")
			}
			return runServer(ctx, &http.Server{
				Addr:              cfg.Server.Listen,
				Handler:           handler,
				ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			}, cfg.Server.ShutdownTimeout, logger)
		},
	}
}

// newEdgeHandler builds the edge HTTP handler. Health and metrics
// endpoints bypass domain routing.
func newEdgeHandler(cfg *config.Config, router *domainrouter.Router, gatherer prometheus.Gatherer, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(traceRequests(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Server.MetricsPath != "" && gatherer != nil {
		r.Handle(cfg.Server.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	var app http.Handler = http.NotFoundHandler()
	if cfg.Server.Upstream != "" {
		proxy, err := newProxy(cfg.Server.Upstream, logger)
		if err != nil {
			return nil, err
		}
		app = proxy
	}

	r.Group(func(r chi.Router) {
		r.Use(router.Middleware())
		r.Handle("/*", app)
	})
	return r, nil
}

// traceRequests continues the caller's trace in a server span and logs
// each request with it.
func traceRequests(logger *slog.Logger) func(http.Handler) http.Handler {
	tracer := otel.Tracer("github.com/vango-dev/authgate/cmd/authgate")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := tracer.Start(ctx, "HTTP "+req.Method, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req.WithContext(ctx))

			span.SetAttributes(
				attribute.String("http.host", req.Host),
				attribute.String("http.target", req.URL.Path),
				attribute.Int("http.status_code", ww.Status()),
			)
			logger.DebugContext(ctx, "request",
				"method", req.Method,
				"host", req.Host,
				"path", req.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(req.Context()))
		})
	}
}

// newProxy forwards to upstream, keeping the original Host so the
// application can tell the domains apart.
func newProxy(upstream string, logger *slog.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, errors.New("A016").WithField("server.upstream").Wrap(err)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			logger.Error("upstream request failed", "path", req.URL.Path, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}, nil
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New("A032").WithDetailf("listening on %s", srv.Addr).Wrap(err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "addr", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New("A032").WithDetail("graceful shutdown did not finish").Wrap(err)
	}
	return nil
}

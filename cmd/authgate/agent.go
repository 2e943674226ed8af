package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/authgate/internal/config"
	"github.com/vango-dev/authgate/pkg/auth"
	"github.com/vango-dev/authgate/pkg/expiry"
	"github.com/vango-dev/authgate/pkg/metrics"
	"github.com/vango-dev/authgate/pkg/navigate"
)

func agentCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the local session agent",
		Long: `Run a local session agent for a UI.

The agent owns one security context. UIs drive it over a small JSON API
and subscribe to the session-expired prompt over a websocket at /ws:

  GET   /api/session            current state
  POST  /api/session/login      {"email": "...", "password": "..."}
  POST  /api/session/logout
  POST  /api/session/navigate   {"url": "https://example.com/auth/dashboards"}
  POST  /api/session/refresh
  POST  /api/session/relogin
  PATCH /api/session/user       partial profile update
  GET   /api/fetch/*            authenticated GET against the Auth Service`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			a, err := newAgent(ctx, cfg, logger, reg)
			if err != nil {
				return err
			}
			defer a.Close()

			success("Session agent listening on %s", cfg.Agent.Listen)
			info("Prompt websocket: ws://%s/ws", cfg.Agent.Listen)
			return runServer(ctx, &http.Server{
				Addr:              cfg.Agent.Listen,
				Handler:           a.Handler(),
				ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			}, cfg.Server.ShutdownTimeout, logger)
		},
	}
}

// agent serves one security context to local UIs. API calls are
// serialized so each response reports the navigations it caused.
type agent struct {
	mu       sync.Mutex
	session  *session
	nav      *navigate.Recorder
	hub      *expiry.Hub
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

func newAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*agent, error) {
	m := metrics.New(metrics.WithRegistry(reg))

	hubOpts := []expiry.HubOption{expiry.WithHubLogger(logger.With("component", "expiry-hub"))}
	if len(cfg.Agent.AllowedOrigins) > 0 {
		hubOpts = append(hubOpts, expiry.WithCheckOrigin(allowOrigins(cfg.Agent.AllowedOrigins)))
	}
	hub := expiry.NewHub(hubOpts...)

	nav := navigate.NewRecorder()
	s, err := openSession(ctx, cfg, logger, m, nav, hub)
	if err != nil {
		hub.Close()
		return nil, err
	}

	a := &agent{
		session:  s,
		nav:      nav,
		hub:      hub,
		gatherer: reg,
		logger:   logger.With("component", "agent"),
	}
	hub.SetChoiceHandler(func(ctx context.Context, choice expiry.Choice) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.session.ctx.HandleChoice(ctx, choice)
	})
	return a, nil
}

// allowOrigins accepts websocket upgrades from the listed origins.
func allowOrigins(origins []string) func(*http.Request) bool {
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(origins, origin)
	}
}

func (a *agent) Close() error {
	a.hub.Close()
	return a.session.Close()
}

// Handler returns the agent's HTTP API.
func (a *agent) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	r.Handle("/ws", a.hub)

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", a.handleState)
		r.Post("/login", a.handleLogin)
		r.Post("/logout", a.handleLogout)
		r.Post("/navigate", a.handleNavigate)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/relogin", a.handleRelogin)
		r.Patch("/user", a.handleUpdateUser)
	})
	r.Get("/api/fetch/*", a.handleFetch)
	return r
}

type stateResponse struct {
	Authenticated bool               `json:"authenticated"`
	Verified      bool               `json:"verified"`
	View          string             `json:"view"`
	Location      string             `json:"location,omitempty"`
	PromptActive  bool               `json:"promptActive"`
	User          *auth.User         `json:"user,omitempty"`
	Navigations   []navigationRecord `json:"navigations,omitempty"`
}

type navigationRecord struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
}

type outcomeResponse struct {
	Kind   string `json:"kind"`
	Class  string `json:"class"`
	Target string `json:"target,omitempty"`
	Error  string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// begin locks the agent and clears the navigation log.
func (a *agent) begin() {
	a.mu.Lock()
	a.nav.Reset()
}

// end returns the navigations since begin and unlocks the agent.
func (a *agent) end() []navigationRecord {
	events := a.nav.Events()
	a.mu.Unlock()

	out := make([]navigationRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, navigationRecord{Kind: ev.Kind.String(), Target: ev.Target})
	}
	return out
}

func (a *agent) state(navs []navigationRecord) stateResponse {
	sc := a.session.ctx
	loc := sc.Location()
	resp := stateResponse{
		Authenticated: sc.IsAuthenticated(),
		Verified:      sc.Verified(),
		View:          sc.View().String(),
		PromptActive:  a.session.prompt.Active(),
		User:          sc.User(),
		Navigations:   navs,
	}
	if loc.Path != "" {
		resp.Location = loc.Target()
		if loc.Host != "" {
			resp.Location = loc.Host + resp.Location
		}
	}
	return resp
}

func (a *agent) handleState(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	resp := a.state(nil)
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (a *agent) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	a.begin()
	res := a.session.ctx.Login(r.Context(), req.Email, req.Password)
	navs := a.end()

	if !res.Success {
		status, ok := auth.StatusCode(res.Err)
		if !ok {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse{Error: res.Message})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Destination string             `json:"destination"`
		User        *auth.User         `json:"user"`
		Navigations []navigationRecord `json:"navigations"`
	}{res.Destination, res.User, navs})
}

func (a *agent) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.begin()
	err := a.session.ctx.Logout(r.Context())
	navs := a.end()

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	a.mu.Lock()
	resp := a.state(navs)
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (a *agent) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	a.begin()
	outcome, err := a.session.ctx.NavigateURL(r.Context(), req.URL)
	navs := a.end()

	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	resp := struct {
		Outcome     outcomeResponse    `json:"outcome"`
		Navigations []navigationRecord `json:"navigations,omitempty"`
	}{
		Outcome: outcomeResponse{
			Kind:   outcome.Kind.String(),
			Class:  outcome.Class.String(),
			Target: outcome.Target,
		},
		Navigations: navs,
	}
	if outcome.Err != nil {
		resp.Outcome.Error = outcome.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *agent) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.begin()
	err := a.session.ctx.Refresh(r.Context())
	navs := a.end()

	if err != nil {
		status, ok := auth.StatusCode(err)
		if !ok {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, struct {
			Error       string             `json:"error"`
			Navigations []navigationRecord `json:"navigations,omitempty"`
		}{err.Error(), navs})
		return
	}
	a.mu.Lock()
	resp := a.state(navs)
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (a *agent) handleRelogin(w http.ResponseWriter, r *http.Request) {
	a.begin()
	a.session.ctx.Relogin(r.Context())
	navs := a.end()

	a.mu.Lock()
	resp := a.state(navs)
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (a *agent) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var patch auth.UserPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	a.mu.Lock()
	err := a.session.ctx.UpdateUser(r.Context(), patch)
	resp := a.state(nil)
	a.mu.Unlock()

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFetch forwards a GET to the Auth Service with the stored bearer
// token. A 401 from a protected endpoint raises the expired prompt.
func (a *agent) handleFetch(w http.ResponseWriter, r *http.Request) {
	target := "/api/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	if _, err := url.ParseRequestURI(target); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	token, err := a.session.store.Token(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	req, err := a.session.http.NewRequest(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.session.http.Do(req)
	if err != nil {
		a.logger.Warn("fetch failed", "target", target, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/vango-dev/authgate/pkg/auth"
	"github.com/vango-dev/authgate/pkg/authclient"
	"github.com/vango-dev/authgate/pkg/domainrouter"
	"github.com/vango-dev/authgate/pkg/expiry"
	"github.com/vango-dev/authgate/pkg/metrics"
	"github.com/vango-dev/authgate/pkg/navigate"
	"github.com/vango-dev/authgate/pkg/routes"
	"github.com/vango-dev/authgate/pkg/tokenstore"
)

// AuthService is the remote Auth Service.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*authclient.LoginResponse, error)
	Verify(ctx context.Context, token string) (*auth.User, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
}

// Config holds the paths, role and hosts the Context routes with.
type Config struct {
	Hosts domainrouter.Hosts

	// LoginPath is the login surface (default "/login").
	LoginPath string
	// PublicRoot is where logout lands (default "/").
	PublicRoot string
	// AdminHome is where AdminRole users land after login
	// (default "/auth/dashboards").
	AdminHome string
	// AdminRole is the distinguished admin role (default "super-admin").
	AdminRole string
}

func (c *Config) applyDefaults() {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.PublicRoot == "" {
		c.PublicRoot = "/"
	}
	if c.AdminHome == "" {
		c.AdminHome = routes.DashboardRoot
	}
	if c.AdminRole == "" {
		c.AdminRole = "super-admin"
	}
}

// View is what the UI may render for the current navigation.
type View int

const (
	// ViewUnknown: nothing has been navigated yet.
	ViewUnknown View = iota
	// ViewLoading: verification is in flight; render nothing.
	ViewLoading
	// ViewReady: the route may render.
	ViewReady
	// ViewExpired: the session expired; render nothing behind the prompt.
	ViewExpired
	// ViewRedirecting: a redirect was issued; render nothing.
	ViewRedirecting
)

// String returns the view name.
func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewReady:
		return "ready"
	case ViewExpired:
		return "expired"
	case ViewRedirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

// Location is the page being navigated to.
type Location struct {
	Host     string
	Path     string
	Query    string
	Fragment string
}

// ParseLocation parses an absolute URL or a bare path.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("security: parse location: %w", err)
	}
	loc := Location{Host: u.Host, Path: u.EscapedPath(), Query: u.RawQuery, Fragment: u.EscapedFragment()}
	if loc.Path == "" {
		loc.Path = "/"
	}
	return loc, nil
}

// Target returns path?query, the form stored as a pending redirect.
func (l Location) Target() string {
	if l.Query == "" {
		return l.Path
	}
	return l.Path + "?" + l.Query
}

// OutcomeKind is the branch a navigation took.
type OutcomeKind int

const (
	// OutcomeRender: the route may render.
	OutcomeRender OutcomeKind = iota
	// OutcomeLoginReset: the login route cleared the session.
	OutcomeLoginReset
	// OutcomeRedirect: the user was sent elsewhere, usually to login.
	OutcomeRedirect
	// OutcomeExpired: verification answered 401; the prompt is shown.
	OutcomeExpired
	// OutcomeStale: a newer navigation superseded this one.
	OutcomeStale
)

// String returns the outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRender:
		return "render"
	case OutcomeLoginReset:
		return "login-reset"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeExpired:
		return "expired"
	case OutcomeStale:
		return "stale"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of a navigation.
type Outcome struct {
	Kind  OutcomeKind
	Class routes.Class
	// Target is where the user was sent, for redirects.
	Target string
	// Err is the taxonomy error behind a redirect or prompt.
	Err error
}

// LoginResult is the structured result of Login. Failures never mutate
// stored state.
type LoginResult struct {
	Success bool
	User    *auth.User
	// Destination is the path the user was sent to.
	Destination string
	Err         error
	// Message is a user-facing failure message.
	Message string
}

// Context is the security context of one client.
// It is safe for concurrent use.
type Context struct {
	cfg      Config
	store    *tokenstore.Store
	pending  *tokenstore.Pending
	service  AuthService
	nav      navigate.Navigator
	table    *routes.Table
	notifier *expiry.Notifier
	prompt   *expiry.Prompt
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu            sync.Mutex
	gen           uint64
	authenticated bool
	verified      bool
	user          *auth.User
	view          View
	location      Location
	unregister    func()
}

// Option configures a Context.
type Option func(*Context)

// WithPending shares a pending-redirect slot, e.g. with a guard.Guard.
func WithPending(p *tokenstore.Pending) Option {
	return func(c *Context) {
		c.pending = p
	}
}

// WithRoutes sets the classification table
// (default: routes.Default(cfg.LoginPath)).
func WithRoutes(t *routes.Table) Option {
	return func(c *Context) {
		c.table = t
	}
}

// WithNotifier registers on n while mounted.
func WithNotifier(n *expiry.Notifier) Option {
	return func(c *Context) {
		c.notifier = n
	}
}

// WithPrompt sets the session-expired prompt.
func WithPrompt(p *expiry.Prompt) Option {
	return func(c *Context) {
		c.prompt = p
	}
}

// WithMetrics records verify, login and logout outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Context) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		c.logger = l
	}
}

// New creates a Context. Call Mount before navigating.
func New(cfg Config, store *tokenstore.Store, service AuthService, nav navigate.Navigator, opts ...Option) *Context {
	cfg.applyDefaults()
	c := &Context{
		cfg:     cfg,
		store:   store,
		service: service,
		nav:     nav,
		logger:  slog.Default().With("component", "security"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pending == nil {
		c.pending = tokenstore.NewPending()
	}
	if c.table == nil {
		c.table = routes.Default(cfg.LoginPath)
	}
	if c.prompt == nil {
		c.prompt = expiry.NewPrompt(expiry.WithMetrics(c.metrics), expiry.WithLogger(c.logger))
	}
	return c
}

// Mount restores persisted state and subscribes to session-expired
// signals. Mounting twice replaces the earlier subscription.
func (c *Context) Mount(ctx context.Context) error {
	sess, err := c.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("security: restore session: %w", err)
	}

	c.mu.Lock()
	c.authenticated = sess.Authenticated && sess.HasToken()
	c.user = sess.User
	c.verified = false
	old := c.unregister
	c.unregister = nil
	if c.notifier != nil {
		c.unregister = c.notifier.Register(c.onExpired)
	}
	c.mu.Unlock()

	if old != nil {
		old()
	}
	c.logger.Debug("mounted", "authenticated", c.IsAuthenticated())
	return nil
}

// Unmount drops the session-expired subscription.
func (c *Context) Unmount() {
	c.mu.Lock()
	unregister := c.unregister
	c.unregister = nil
	c.gen++
	c.view = ViewUnknown
	c.mu.Unlock()

	if unregister != nil {
		unregister()
	}
}

func (c *Context) onExpired() {
	c.prompt.Raise()
}

// Pending returns the pending-redirect slot.
func (c *Context) Pending() *tokenstore.Pending {
	return c.pending
}

// Prompt returns the session-expired prompt.
func (c *Context) Prompt() *expiry.Prompt {
	return c.prompt
}

// Routes returns the classification table.
func (c *Context) Routes() *routes.Table {
	return c.table
}

// IsAuthenticated reports the local authentication flag.
func (c *Context) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Verified reports whether a verify or login succeeded in the current
// session lifetime.
func (c *Context) Verified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verified
}

// User returns a copy of the cached user, or nil.
func (c *Context) User() *auth.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user.Clone()
}

// View returns what the current navigation may render.
func (c *Context) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Location returns the current location.
func (c *Context) Location() Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// resetLocked drops local auth state. Caller must hold c.mu.
func (c *Context) resetLocked() {
	c.authenticated = false
	c.verified = false
	c.user = nil
}

// clearStore clears persisted state, logging failures.
func (c *Context) clearStore(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("failed to clear token store", "error", err)
		return err
	}
	return nil
}

// goTo navigates to target from host, crossing domains when target's
// class belongs to a different logical domain. It returns the path or URL
// navigated to. Must be called without c.mu held.
func (c *Context) goTo(host, target string) string {
	hosts := c.cfg.Hosts
	domain := hosts.Classify(host)
	if domain == domainrouter.DomainLoopback || domain == domainrouter.DomainUnknown {
		c.nav.Navigate(target)
		return target
	}

	gated := c.table.IsGated(target)
	switch {
	case gated && domain != domainrouter.DomainAdmin && hosts.Admin != "":
		u := hosts.URL(domainrouter.DomainAdmin, target)
		c.nav.Assign(u)
		return u
	case !gated && domain == domainrouter.DomainAdmin && hosts.Main != "":
		u := hosts.URL(domainrouter.DomainMain, target)
		c.nav.Assign(u)
		return u
	}
	c.nav.Navigate(target)
	return target
}

// isStale reports whether gen has been superseded. Caller must hold c.mu.
func (c *Context) isStale(gen uint64) bool {
	return gen != c.gen
}

// Package guard is a cheap, local-only render gate.
//
// A Guard decides once, from the Token Store alone, whether a session
// token is present. It never talks to the Auth Service; use it to
// decorate content regions where an optimistic check is enough and rely
// on security.Context for remote verification of gated routes.
package guard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vango-dev/authgate/pkg/navigate"
	"github.com/vango-dev/authgate/pkg/tokenstore"
)

// State is the guard's evaluation state.
type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Guard gates rendering on a stored session token.
type Guard struct {
	store     *tokenstore.Store
	pending   *tokenstore.Pending
	nav       navigate.Navigator
	loginPath string
	logger    *slog.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Guard.
type Option func(*Guard)

// WithLoginPath sets the login path (default "/login").
func WithLoginPath(path string) Option {
	return func(g *Guard) {
		g.loginPath = path
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// New creates a guard in StateUnknown. pending is shared with the
// security context so a later login returns to the guarded path.
func New(store *tokenstore.Store, pending *tokenstore.Pending, nav navigate.Navigator, opts ...Option) *Guard {
	g := &Guard{
		store:     store,
		pending:   pending,
		nav:       nav,
		loginPath: "/login",
		logger:    slog.Default().With("component", "guard"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mount evaluates the guard for path. Only the first call evaluates;
// later calls return the settled state. When no token is stored, path
// becomes the pending redirect target and the user is sent to login.
func (g *Guard) Mount(ctx context.Context, path string) State {
	g.mu.Lock()
	if g.state != StateUnknown {
		s := g.state
		g.mu.Unlock()
		return s
	}

	token, err := g.store.Token(ctx)
	if err != nil {
		g.logger.Warn("token store read failed", "error", err)
	}
	if token != "" {
		g.state = StateAuthenticated
		g.mu.Unlock()
		return StateAuthenticated
	}
	g.state = StateUnauthenticated
	g.mu.Unlock()

	g.pending.Remember(path)
	g.nav.Navigate(g.loginPath)
	return StateUnauthenticated
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Render returns children() when g is authenticated and placeholder
// otherwise. children is not called unless it will be shown.
func Render[T any](g *Guard, children func() T, placeholder T) T {
	if g.State() != StateAuthenticated {
		return placeholder
	}
	return children()
}

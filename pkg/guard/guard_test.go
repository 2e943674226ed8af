package guard

import (
	"context"
	"testing"

	"github.com/vango-dev/authgate/pkg/auth"
	"github.com/vango-dev/authgate/pkg/navigate"
	"github.com/vango-dev/authgate/pkg/tokenstore"
)

func TestGuardWithToken(t *testing.T) {
	store := tokenstore.New(tokenstore.NewMemoryBackend())
	if err := store.Set(context.Background(), auth.Session{SessionToken: "tok", Authenticated: true}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	nav := navigate.NewRecorder()
	pending := tokenstore.NewPending()
	g := New(store, pending, nav)

	if got := Render(g, func() string { return "secret" }, "placeholder"); got != "placeholder" {
		t.Fatalf("unknown state rendered %q", got)
	}

	if s := g.Mount(context.Background(), "/auth/dashboards/billing"); s != StateAuthenticated {
		t.Fatalf("Mount() = %v, want authenticated", s)
	}
	if got := Render(g, func() string { return "secret" }, "placeholder"); got != "secret" {
		t.Fatalf("authenticated state rendered %q", got)
	}
	if len(nav.Events()) != 0 {
		t.Fatal("authenticated guard navigated")
	}
	if _, ok := pending.Peek(); ok {
		t.Fatal("authenticated guard recorded a pending target")
	}
}

func TestGuardWithoutToken(t *testing.T) {
	store := tokenstore.New(tokenstore.NewMemoryBackend())
	nav := navigate.NewRecorder()
	pending := tokenstore.NewPending()
	g := New(store, pending, nav, WithLoginPath("/signin"))

	if s := g.Mount(context.Background(), "/auth/dashboards/billing?tab=2"); s != StateUnauthenticated {
		t.Fatalf("Mount() = %v, want unauthenticated", s)
	}

	called := false
	got := Render(g, func() int { called = true; return 1 }, 0)
	if got != 0 || called {
		t.Fatal("unauthenticated guard rendered children")
	}
	if p, _ := pending.Peek(); p != "/auth/dashboards/billing?tab=2" {
		t.Fatalf("pending = %q", p)
	}
	if last, _ := nav.Last(); last != (navigate.Event{Kind: navigate.KindNavigate, Target: "/signin"}) {
		t.Fatalf("navigation = %v", last)
	}
}

func TestGuardEvaluatesOnce(t *testing.T) {
	store := tokenstore.New(tokenstore.NewMemoryBackend())
	nav := navigate.NewRecorder()
	g := New(store, tokenstore.NewPending(), nav)

	g.Mount(context.Background(), "/a")
	_ = store.Set(context.Background(), auth.Session{SessionToken: "late"})
	if s := g.Mount(context.Background(), "/a"); s != StateUnauthenticated {
		t.Fatalf("second Mount() = %v, want the settled state", s)
	}
	if len(nav.Events()) != 1 {
		t.Fatalf("navigations = %d, want 1", len(nav.Events()))
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateUnknown: "unknown", StateAuthenticated: "authenticated", StateUnauthenticated: "unauthenticated"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q", s, s.String())
		}
	}
}

package tokenstore

import (
	"context"
	"sync"
	"testing"

	"github.com/vango-dev/authgate/pkg/auth"
)

func testSession() auth.Session {
	return auth.Session{
		SessionToken:  "sess-1",
		RefreshToken:  "ref-1",
		User:          &auth.User{ID: "u1", Email: "ada@example.com", Role: "member"},
		Authenticated: true,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryBackend())
	defer store.Close()

	t.Run("EmptyIsZero", func(t *testing.T) {
		sess, err := store.Get(ctx)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if sess.HasToken() || sess.User != nil || sess.Authenticated {
			t.Fatalf("expected zero session, got %+v", sess)
		}
	})

	t.Run("SetThenGet", func(t *testing.T) {
		if err := store.Set(ctx, testSession()); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		sess, err := store.Get(ctx)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if sess.SessionToken != "sess-1" || sess.RefreshToken != "ref-1" || !sess.Authenticated {
			t.Fatalf("unexpected session: %+v", sess)
		}
		if sess.User == nil || sess.User.Email != "ada@example.com" {
			t.Fatalf("user not persisted: %+v", sess.User)
		}
	})

	t.Run("SetDropsStaleKeys", func(t *testing.T) {
		if err := store.Set(ctx, auth.Session{SessionToken: "sess-2"}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		sess, _ := store.Get(ctx)
		if sess.RefreshToken != "" || sess.User != nil {
			t.Fatalf("stale values survived: %+v", sess)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := store.Set(ctx, testSession()); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		sess, _ := store.Get(ctx)
		if sess.HasToken() || sess.User != nil || sess.Authenticated || sess.RefreshToken != "" {
			t.Fatalf("session not cleared: %+v", sess)
		}
	})
}

func TestStoreSetTokensKeepsUser(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryBackend())
	if err := store.Set(ctx, testSession()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := store.SetTokens(ctx, auth.Tokens{SessionToken: "sess-new"}); err != nil {
		t.Fatalf("SetTokens failed: %v", err)
	}
	sess, _ := store.Get(ctx)
	if sess.SessionToken != "sess-new" {
		t.Errorf("session token = %q, want sess-new", sess.SessionToken)
	}
	if sess.RefreshToken != "ref-1" {
		t.Errorf("empty refresh token should keep the old one, got %q", sess.RefreshToken)
	}
	if sess.User == nil || sess.User.ID != "u1" {
		t.Errorf("user lost: %+v", sess.User)
	}
}

func TestStoreUndecodableUser(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	_ = backend.Set(ctx, map[string]string{KeySessionToken: "tok", KeyUser: "{not json"})

	sess, err := New(backend).Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.User != nil {
		t.Fatal("undecodable user should be treated as absent")
	}
	if sess.SessionToken != "tok" {
		t.Fatalf("token lost: %q", sess.SessionToken)
	}
}

func TestStoreClosedBackend(t *testing.T) {
	store := New(NewMemoryBackend())
	_ = store.Close()

	if _, err := store.Get(context.Background()); err == nil {
		t.Fatal("expected error from closed backend")
	}
}

// TestStoreClearIsAtomicForReaders checks that a reader sees either the full
// session or nothing while writers set and clear concurrently.
func TestStoreClearIsAtomicForReaders(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryBackend())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = store.Set(ctx, testSession())
			_ = store.Clear(ctx)
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		sess, err := store.Get(ctx)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		partial := sess.HasToken() != (sess.User != nil) || sess.HasToken() != (sess.RefreshToken != "")
		if partial {
			t.Fatalf("observed partial session: %+v", sess)
		}
	}
}

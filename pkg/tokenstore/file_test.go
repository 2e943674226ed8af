package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileBackendSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	if err := New(backend).Set(ctx, testSession()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	_ = backend.Close()

	reopened, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	sess, err := New(reopened).Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.SessionToken != "sess-1" || sess.User == nil || sess.User.ID != "u1" {
		t.Fatalf("session not restored: %+v", sess)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("file mode = %o, want 600", perm)
		}
	}
}

func TestFileBackendClearRemovesKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	store := New(backend)
	_ = store.Set(ctx, testSession())
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	reopened, _ := NewFileBackend(path)
	if _, ok, _ := reopened.Get(ctx, KeySessionToken); ok {
		t.Fatal("session token still on disk after Clear")
	}
}

func TestFileBackendCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileBackend(path); err == nil {
		t.Fatal("expected parse error for corrupt file")
	}
}

func TestFileBackendClosed(t *testing.T) {
	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "s.json"))
	if err != nil {
		t.Fatal(err)
	}
	_ = backend.Close()
	if err := backend.Set(context.Background(), map[string]string{"a": "b"}); err == nil {
		t.Fatal("expected ErrStoreClosed")
	}
}

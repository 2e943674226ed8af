//go:build integration

package redisstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/vango-dev/authgate/pkg/auth"
	"github.com/vango-dev/authgate/pkg/tokenstore"
)

var (
	testRedisURL   string
	redisContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	var err error
	redisContainer, err = redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	code := m.Run()
	if err := redisContainer.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate redis container: %v\n", err)
	}
	os.Exit(code)
}

func setupTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	opts, err := goredis.ParseURL(testRedisURL)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}
	client := goredis.NewClient(opts)
	if err := client.FlushAll(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := setupTestClient(t)
	backend := New(client, "laptop", WithTTL(time.Hour))
	store := tokenstore.New(backend)

	sess := auth.Session{
		SessionToken:  "sess-1",
		RefreshToken:  "ref-1",
		User:          &auth.User{ID: "u1", Email: "ada@example.com"},
		Authenticated: true,
	}
	if err := store.Set(ctx, sess); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.SessionToken != "sess-1" || got.User == nil || got.User.Email != "ada@example.com" {
		t.Fatalf("unexpected session: %+v", got)
	}

	ttl, err := client.TTL(ctx, backend.Key()).Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected TTL on %s, got %v (%v)", backend.Key(), ttl, err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	n, err := client.Exists(ctx, backend.Key()).Result()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Fatal("hash should be gone once every field is deleted")
	}
}

func TestBackendPrefix(t *testing.T) {
	client := setupTestClient(t)
	b := New(client, "tab-1", WithPrefix("myapp:"))
	if b.Key() != "myapp:tab-1" {
		t.Fatalf("Key() = %q", b.Key())
	}
}

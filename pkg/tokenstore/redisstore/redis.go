// Package redisstore provides a Redis-backed tokenstore.Backend, suitable
// when several hosts must share one client's session.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vango-dev/authgate/pkg/tokenstore"
)

// Backend stores all keys of one client in a single Redis hash.
type Backend struct {
	client goredis.UniversalClient
	prefix string
	key    string
	ttl    time.Duration
	closed atomic.Bool
}

var (
	_ tokenstore.Backend     = (*Backend)(nil)
	_ tokenstore.BatchGetter = (*Backend)(nil)
)

// Option configures Backend behavior.
type Option func(*Backend)

// WithPrefix sets the key prefix. Default: "authgate:session:".
func WithPrefix(prefix string) Option {
	return func(b *Backend) {
		b.prefix = prefix
	}
}

// WithTTL expires the hash after d without writes. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(b *Backend) {
		b.ttl = d
	}
}

// New creates a backend for the client identified by clientID.
// The Redis client is not owned by the backend and is not closed by Close.
func New(client goredis.UniversalClient, clientID string, opts ...Option) *Backend {
	b := &Backend{client: client, prefix: "authgate:session:"}
	for _, opt := range opts {
		opt(b)
	}
	b.key = b.prefix + clientID
	return b
}

// Key returns the Redis key of the hash.
// This is for testing/debugging purposes.
func (b *Backend) Key() string {
	return b.key
}

// Get returns one field of the hash.
func (b *Backend) Get(ctx context.Context, field string) (string, bool, error) {
	if b.closed.Load() {
		return "", false, tokenstore.ErrStoreClosed{}
	}
	v, err := b.client.HGet(ctx, b.key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return v, true, nil
}

// GetMany reads several fields with one HMGET.
func (b *Backend) GetMany(ctx context.Context, fields ...string) (map[string]string, error) {
	if b.closed.Load() {
		return nil, tokenstore.ErrStoreClosed{}
	}
	vals, err := b.client.HMGet(ctx, b.key, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}
	out := make(map[string]string, len(fields))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[fields[i]] = s
		}
	}
	return out, nil
}

// Set writes fields and refreshes the TTL in one MULTI/EXEC.
func (b *Backend) Set(ctx context.Context, values map[string]string) error {
	if b.closed.Load() {
		return tokenstore.ErrStoreClosed{}
	}
	if len(values) == 0 {
		return nil
	}
	args := make([]any, 0, len(values)*2)
	for k, v := range values {
		args = append(args, k, v)
	}

	_, err := b.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, b.key, args...)
		if b.ttl > 0 {
			pipe.Expire(ctx, b.key, b.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Delete removes fields with a single HDEL, which Redis applies atomically.
func (b *Backend) Delete(ctx context.Context, fields ...string) error {
	if b.closed.Load() {
		return tokenstore.ErrStoreClosed{}
	}
	if len(fields) == 0 {
		return nil
	}
	if err := b.client.HDel(ctx, b.key, fields...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// Close marks the backend closed.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/vango-dev/authgate/pkg/auth"
)

// Persisted keys.
const (
	KeySessionToken  = "sessionToken"
	KeyRefreshToken  = "refreshToken"
	KeyUser          = "user"
	KeyAuthenticated = "isAuthenticated"
)

// AllKeys lists every key a Store writes. Clear removes exactly these.
var AllKeys = []string{KeySessionToken, KeyRefreshToken, KeyUser, KeyAuthenticated}

// Backend is a string key-value store. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes all given pairs. Keys not in values are left untouched.
	Set(ctx context.Context, values map[string]string) error

	// Delete removes the keys in one operation. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Close releases backend resources.
	Close() error
}

// BatchGetter is implemented by backends that can read several keys in one
// round trip. Store.Get prefers it when available.
type BatchGetter interface {
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
}

// ErrStoreClosed is returned when operations are attempted on a closed backend.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "token store is closed"
}

// Store reads and writes auth.Session values through a Backend.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for decode warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store on top of backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  slog.Default().With("component", "tokenstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads the persisted session. A missing session is the zero Session,
// not an error. A user value that cannot be decoded is treated as absent.
func (s *Store) Get(ctx context.Context) (auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.readAll(ctx)
	if err != nil {
		return auth.Session{}, err
	}

	var sess auth.Session
	sess.SessionToken = values[KeySessionToken]
	sess.RefreshToken = values[KeyRefreshToken]
	sess.Authenticated, _ = strconv.ParseBool(values[KeyAuthenticated])

	if raw := values[KeyUser]; raw != "" {
		var u auth.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.logger.Warn("discarding undecodable cached user", "error", err)
		} else {
			sess.User = &u
		}
	}
	return sess, nil
}

func (s *Store) readAll(ctx context.Context) (map[string]string, error) {
	if bg, ok := s.backend.(BatchGetter); ok {
		values, err := bg.GetMany(ctx, AllKeys...)
		if err != nil {
			return nil, fmt.Errorf("tokenstore: get: %w", err)
		}
		return values, nil
	}

	values := make(map[string]string, len(AllKeys))
	for _, key := range AllKeys {
		v, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("tokenstore: get %s: %w", key, err)
		}
		if ok {
			values[key] = v
		}
	}
	return values, nil
}

// Token returns the stored session token, or "" if none.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, _, err := s.backend.Get(ctx, KeySessionToken)
	if err != nil {
		return "", fmt.Errorf("tokenstore: get %s: %w", KeySessionToken, err)
	}
	return v, nil
}

// Set persists sess. Empty token fields and a nil user remove their keys so
// a Set never leaves values from an older session behind.
func (s *Store) Set(ctx context.Context, sess auth.Session) error {
	values := map[string]string{
		KeyAuthenticated: strconv.FormatBool(sess.Authenticated),
	}
	var stale []string

	if sess.SessionToken != "" {
		values[KeySessionToken] = sess.SessionToken
	} else {
		stale = append(stale, KeySessionToken)
	}
	if sess.RefreshToken != "" {
		values[KeyRefreshToken] = sess.RefreshToken
	} else {
		stale = append(stale, KeyRefreshToken)
	}
	if sess.User != nil {
		raw, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("tokenstore: encode user: %w", err)
		}
		values[KeyUser] = string(raw)
	} else {
		stale = append(stale, KeyUser)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(stale) > 0 {
		if err := s.backend.Delete(ctx, stale...); err != nil {
			return fmt.Errorf("tokenstore: delete stale keys: %w", err)
		}
	}
	if err := s.backend.Set(ctx, values); err != nil {
		return fmt.Errorf("tokenstore: set: %w", err)
	}
	return nil
}

// SetTokens replaces the token pair without touching the cached user.
// An empty refresh token keeps the stored one.
func (s *Store) SetTokens(ctx context.Context, tokens auth.Tokens) error {
	values := map[string]string{KeySessionToken: tokens.SessionToken}
	if tokens.RefreshToken != "" {
		values[KeyRefreshToken] = tokens.RefreshToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Set(ctx, values); err != nil {
		return fmt.Errorf("tokenstore: set tokens: %w", err)
	}
	return nil
}

// SetUser replaces the cached user profile.
func (s *Store) SetUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == nil {
		if err := s.backend.Delete(ctx, KeyUser); err != nil {
			return fmt.Errorf("tokenstore: delete user: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("tokenstore: encode user: %w", err)
	}
	if err := s.backend.Set(ctx, map[string]string{KeyUser: string(raw)}); err != nil {
		return fmt.Errorf("tokenstore: set user: %w", err)
	}
	return nil
}

// Clear removes every persisted key. Readers of this Store never observe a
// partially cleared session.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, AllKeys...); err != nil {
		return fmt.Errorf("tokenstore: clear: %w", err)
	}
	return nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

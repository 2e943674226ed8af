// Package authstub is a development Auth Service implementing the HTTP
// contract the session layer talks to. It keeps accounts in memory,
// issues HS256 JWT session tokens and opaque refresh tokens, and is
// meant for local runs and tests only.
package authstub

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/vango-dev/authgate/pkg/auth"
)

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

type account struct {
	hash []byte
	user auth.User
}

type refreshEntry struct {
	userID  string
	expires time.Time
}

// Server is the stub Auth Service.
type Server struct {
	key        []byte
	issuer     string
	tokenTTL   time.Duration
	refreshTTL time.Duration
	bcryptCost int
	clock      clockwork.Clock
	logger     *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account // by lowercase email
	byID     map[string]*account
	refresh  map[string]refreshEntry
	revoked  map[string]time.Time // jti -> token expiry

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithSigningKey sets the HMAC key. By default a random key is generated,
// so tokens do not survive a restart.
func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		s.key = key
	}
}

// WithIssuer sets the token issuer (default "authgate-stub").
func WithIssuer(issuer string) Option {
	return func(s *Server) {
		s.issuer = issuer
	}
}

// WithTokenTTL sets the session token lifetime (default 15m).
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = d
	}
}

// WithRefreshTTL sets the refresh token lifetime (default 7 days).
func WithRefreshTTL(d time.Duration) Option {
	return func(s *Server) {
		s.refreshTTL = d
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

// WithClock sets the clock used for token times.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a stub server with no accounts.
func New(opts ...Option) *Server {
	s := &Server{
		issuer:     "authgate-stub",
		tokenTTL:   15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
		bcryptCost: bcrypt.DefaultCost,
		clock:      clockwork.NewRealClock(),
		logger:     slog.Default().With("component", "authstub"),
		accounts:   make(map[string]*account),
		byID:       make(map[string]*account),
		refresh:    make(map[string]refreshEntry),
		revoked:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.key) == 0 {
		s.key = make([]byte, 32)
		if _, err := rand.Read(s.key); err != nil {
			panic("authstub: generate signing key: " + err.Error())
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/api/auth/login", s.handleLogin)
	r.Get("/api/auth/verify", s.handleVerify)
	r.Post("/api/auth/logout", s.handleLogout)
	r.Post("/api/auth/refresh", s.handleRefresh)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser registers an account. An empty user ID is replaced with a new
// UUID. It returns the stored user.
func (s *Server) AddUser(email, password string, user auth.User) (auth.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return auth.User{}, errors.New("authstub: email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return auth.User{}, fmt.Errorf("authstub: hash password: %w", err)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = email

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[email]; exists {
		return auth.User{}, fmt.Errorf("authstub: account %s already exists", email)
	}
	a := &account{hash: hash, user: user}
	s.accounts[email] = a
	s.byID[user.ID] = a
	return *user.Clone(), nil
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, envelope{Success: false, Message: msg})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "request body must be JSON")
		return
	}

	s.mu.Lock()
	a, ok := s.accounts[strings.ToLower(strings.TrimSpace(body.Email))]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(a.hash, []byte(body.Password)) != nil {
		s.logger.Info("login rejected", "email", body.Email)
		fail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	s.mu.Lock()
	a.user.LastLoginIP = a.user.IPAddress
	a.user.IPAddress = clientIP(r)
	user := a.user.Clone()
	s.mu.Unlock()

	tokens, err := s.issue(user)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		fail(w, http.StatusInternalServerError, "could not issue session")
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"sessionToken": tokens.SessionToken,
		"refreshToken": tokens.RefreshToken,
		"user":         user,
	}})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims, status, msg := s.authenticate(r)
	if claims == nil {
		fail(w, status, msg)
		return
	}

	s.mu.Lock()
	a, ok := s.byID[claims.Subject]
	var user *auth.User
	if ok {
		user = a.user.Clone()
	}
	s.mu.Unlock()
	if !ok {
		fail(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: map[string]any{"user": user}})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, status, msg := s.authenticate(r)
	if claims == nil {
		fail(w, status, msg)
		return
	}

	s.mu.Lock()
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	for token, entry := range s.refresh {
		if entry.userID == claims.Subject {
			delete(s.refresh, token)
		}
	}
	s.mu.Unlock()
	writeEnvelope(w, http.StatusOK, envelope{Success: true})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "request body must be JSON")
		return
	}

	now := s.clock.Now()
	s.mu.Lock()
	entry, ok := s.refresh[body.RefreshToken]
	delete(s.refresh, body.RefreshToken)
	var user *auth.User
	if ok {
		if a, exists := s.byID[entry.userID]; exists {
			user = a.user.Clone()
		}
	}
	s.mu.Unlock()

	if !ok || user == nil || !now.Before(entry.expires) {
		fail(w, http.StatusUnauthorized, "refresh token is invalid or expired")
		return
	}

	tokens, err := s.issue(user)
	if err != nil {
		fail(w, http.StatusInternalServerError, "could not issue session")
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: tokens})
}

// authenticate validates the bearer token. On failure it returns nil
// claims with the status to answer: 401 for missing, expired or revoked
// tokens, 403 for tokens that are not ours.
func (s *Server) authenticate(r *http.Request) (*Claims, int, string) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, http.StatusUnauthorized, "missing bearer token"
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, http.StatusUnauthorized, "session token expired"
	case err != nil:
		return nil, http.StatusForbidden, "session token rejected"
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, http.StatusUnauthorized, "session token revoked"
	}
	return claims, 0, ""
}

func (s *Server) issue(user *auth.User) (auth.Tokens, error) {
	now := s.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			ID:        uuid.NewString(),
		},
		Email: user.Email,
		Role:  user.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return auth.Tokens{}, fmt.Errorf("sign token: %w", err)
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.refresh[refresh] = refreshEntry{userID: user.ID, expires: now.Add(s.refreshTTL)}
	s.pruneLocked(now)
	s.mu.Unlock()

	return auth.Tokens{SessionToken: signed, RefreshToken: refresh}, nil
}

// pruneLocked drops revocations and refresh tokens that have expired.
func (s *Server) pruneLocked(now time.Time) {
	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
		}
	}
	for token, entry := range s.refresh {
		if !now.Before(entry.expires) {
			delete(s.refresh, token)
		}
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package authclient is the client side of the Auth Service HTTP contract.
//
// All endpoints speak a JSON envelope:
//
//	{"success": true, "data": {...}}
//	{"success": false, "message": "..."}
//
// Every failure is returned as an *Error whose chain carries the matching
// sentinels from package auth, so callers branch with errors.Is:
//
//	user, err := c.Verify(ctx, token)
//	switch {
//	case errors.Is(err, auth.ErrExpiredToken): // 401, prompt
//	case err != nil:                            // anything else, relogin
//	}
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vango-dev/authgate/pkg/auth"
	"github.com/vango-dev/authgate/pkg/httpclient"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 1 << 20

// Endpoints are the Auth Service paths, relative to the client's base URL.
type Endpoints struct {
	Login   string
	Verify  string
	Logout  string
	Refresh string
}

// DefaultEndpoints returns the standard /api/auth/* paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:   "/api/auth/login",
		Verify:  "/api/auth/verify",
		Logout:  "/api/auth/logout",
		Refresh: "/api/auth/refresh",
	}
}

// Envelope is the response wrapper used by every endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// LoginResponse is the data of a successful login.
type LoginResponse struct {
	SessionToken string     `json:"sessionToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	User         *auth.User `json:"user,omitempty"`
}

type verifyData struct {
	User *auth.User `json:"user,omitempty"`
}

// Error describes a failed Auth Service call.
type Error struct {
	// Op is the operation: "login", "verify", "logout" or "refresh".
	Op string
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	// Message is the service's message, if any.
	Message string
	// Err holds the auth sentinels and the underlying cause.
	Err error
}

func (e *Error) Error() string {
	msg := "authclient: " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// MessageOf returns the service message carried by err, if any.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// Client calls the Auth Service.
type Client struct {
	http      *httpclient.Client
	endpoints Endpoints
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoints overrides the endpoint paths.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		c.endpoints = e
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client that sends requests through hc.
func New(hc *httpclient.Client, opts ...Option) *Client {
	c := &Client{
		http:      hc,
		endpoints: DefaultEndpoints(),
		logger:    slog.Default().With("component", "authclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoints returns the configured endpoint paths.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	status, env, err := c.call(ctx, http.MethodPost, c.endpoints.Login, "", body)
	if err != nil {
		return nil, &Error{Op: "login", StatusCode: status, Err: errors.Join(auth.ErrLoginFailed, err)}
	}
	if !env.Success || status/100 != 2 {
		return nil, &Error{Op: "login", StatusCode: status, Message: env.Message, Err: auth.ErrLoginFailed}
	}

	var data LoginResponse
	if err := json.Unmarshal(env.Data, &data); err != nil || data.SessionToken == "" {
		return nil, &Error{Op: "login", StatusCode: status, Message: "response carries no session token",
			Err: errors.Join(auth.ErrLoginFailed, auth.ErrMalformedResponse)}
	}
	return &data, nil
}

// Verify checks token and returns the current user profile, which may be
// nil when the service omits it.
//
// A 401 yields auth.ErrExpiredToken. Any other failure, including a
// transport error or a 2xx with success=false, yields auth.ErrInvalidToken.
func (c *Client) Verify(ctx context.Context, token string) (*auth.User, error) {
	status, env, err := c.call(ctx, http.MethodGet, c.endpoints.Verify, token, nil)
	if status == http.StatusUnauthorized {
		return nil, &Error{Op: "verify", StatusCode: status, Message: env.Message, Err: auth.ErrExpiredToken}
	}
	if err != nil {
		return nil, &Error{Op: "verify", StatusCode: status, Err: errors.Join(auth.ErrInvalidToken, err)}
	}
	if status/100 != 2 || !env.Success {
		return nil, &Error{Op: "verify", StatusCode: status, Message: env.Message, Err: auth.ErrInvalidToken}
	}

	var data verifyData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			c.logger.Warn("verify response carries an undecodable user", "error", err)
		}
	}
	return data.User, nil
}

// Logout tells the service to end the session. Callers typically ignore
// the error.
func (c *Client) Logout(ctx context.Context, token string) error {
	status, _, err := c.call(ctx, http.MethodPost, c.endpoints.Logout, token, nil)
	if err != nil && status == 0 {
		return &Error{Op: "logout", Err: err}
	}
	if status/100 != 2 {
		return &Error{Op: "logout", StatusCode: status, Err: fmt.Errorf("unexpected status %d", status)}
	}
	return nil
}

// Refresh exchanges a refresh token for a new session token. The returned
// RefreshToken is empty when the service did not rotate it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error) {
	if refreshToken == "" {
		return auth.Tokens{}, &Error{Op: "refresh", Message: "no refresh token stored", Err: auth.ErrRefreshFailed}
	}
	body, _ := json.Marshal(map[string]string{"refreshToken": refreshToken})
	status, env, err := c.call(ctx, http.MethodPost, c.endpoints.Refresh, "", body)
	if err != nil {
		return auth.Tokens{}, &Error{Op: "refresh", StatusCode: status, Err: errors.Join(auth.ErrRefreshFailed, err)}
	}
	if status/100 != 2 || !env.Success {
		return auth.Tokens{}, &Error{Op: "refresh", StatusCode: status, Message: env.Message, Err: auth.ErrRefreshFailed}
	}

	var tokens auth.Tokens
	if err := json.Unmarshal(env.Data, &tokens); err != nil || tokens.SessionToken == "" {
		return auth.Tokens{}, &Error{Op: "refresh", StatusCode: status, Message: "response carries no session token",
			Err: errors.Join(auth.ErrRefreshFailed, auth.ErrMalformedResponse)}
	}
	return tokens, nil
}

// call sends a request and decodes the envelope. It returns the status
// (0 when no response arrived) and an error wrapping auth.ErrUnreachable or
// auth.ErrMalformedResponse. A 401 with an empty or non-JSON body is not
// an error: the status alone is meaningful.
func (c *Client) call(ctx context.Context, method, path, bearer string, body []byte) (int, Envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := c.http.NewRequest(ctx, method, path, reader)
	if err != nil {
		return 0, Envelope{}, fmt.Errorf("%w: %w", auth.ErrUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("auth service unreachable", "path", path, "error", err)
		return 0, Envelope{}, fmt.Errorf("%w: %w", auth.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, Envelope{}, fmt.Errorf("%w: %w", auth.ErrUnreachable, err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			return resp.StatusCode, Envelope{}, nil
		}
		return resp.StatusCode, Envelope{}, fmt.Errorf("%w: %w", auth.ErrMalformedResponse, err)
	}
	return resp.StatusCode, env, nil
}

package auth

import (
	"errors"
	"net/http"
)

var (
	// ErrNoToken is returned when a gated route is entered without a stored session token.
	ErrNoToken = errors.New("no session token")

	// ErrInvalidToken is returned when verification fails for a reason other than expiry.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrExpiredToken is returned when the Auth Service answers 401.
	ErrExpiredToken = errors.New("session token expired")

	// ErrRefreshFailed is returned when a refresh token could not be exchanged.
	ErrRefreshFailed = errors.New("session refresh failed")

	// ErrLoginFailed is returned when the Auth Service rejects credentials.
	ErrLoginFailed = errors.New("login failed")

	// ErrUnreachable wraps transport failures talking to the Auth Service.
	ErrUnreachable = errors.New("auth service unreachable")

	// ErrMalformedResponse wraps responses that are not the expected JSON envelope.
	ErrMalformedResponse = errors.New("malformed auth service response")
)

// StatusCode returns the HTTP status code that best represents an auth error.
// Returns (statusCode, true) for auth errors, (0, false) otherwise.
func StatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	switch {
	case errors.Is(err, ErrExpiredToken), errors.Is(err, ErrNoToken), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrLoginFailed), errors.Is(err, ErrRefreshFailed):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrUnreachable), errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway, true
	default:
		return 0, false
	}
}

// IsAuthError reports whether err belongs to the session taxonomy.
func IsAuthError(err error) bool {
	_, ok := StatusCode(err)
	return ok
}

// Recoverable reports whether err should be presented as a refresh-or-relogin
// prompt rather than an immediate redirect.
func Recoverable(err error) bool {
	return errors.Is(err, ErrExpiredToken)
}

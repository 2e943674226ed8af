// Package auth holds the types shared by every part of the session layer:
// the persisted Session, the cached User profile, and the error taxonomy
// used to decide between rendering, redirecting and prompting.
//
// # Error Taxonomy
//
// Failures never surface as panics. Each one resolves to a sentinel that
// callers match with errors.Is:
//
//   - ErrNoToken: a gated route was entered with nothing stored. Redirect to login.
//   - ErrInvalidToken: verification failed for any reason other than 401.
//     Clear state and redirect to login.
//   - ErrExpiredToken: the Auth Service answered 401. Keep state and raise the
//     session-expired prompt.
//   - ErrRefreshFailed: the refresh exchange failed. Fall through to relogin.
//   - ErrLoginFailed: credentials were rejected. Reported, never thrown.
//
// Transport problems are wrapped into the above with ErrUnreachable or
// ErrMalformedResponse so a caller can tell "backend down" from "bad
// credentials":
//
//	res := sec.Login(ctx, email, password)
//	if errors.Is(res.Err, auth.ErrMalformedResponse) {
//	    // backend returned HTML, probably a proxy error page
//	}
//
// A 403 from the verify endpoint is classified as ErrInvalidToken, not
// ErrExpiredToken. Backends that use 403 for revoked-but-well-formed tokens
// will therefore send users to login instead of the refresh prompt.
package auth

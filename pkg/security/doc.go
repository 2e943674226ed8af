// Package security holds the client's authentication state and runs the
// per-navigation access state machine.
//
// Each call to Context.Navigate classifies the target once, using the
// shared routes.Table, and then takes exactly one branch:
//
//   - login route: the stored session is cleared unconditionally.
//   - gated route without a token: the target is remembered as the
//     pending redirect and the user is sent to login.
//   - gated route with a token: the token is verified remotely. Success
//     renders; a 401 raises the session-expired prompt and keeps state;
//     anything else clears state and sends the user to login.
//   - public route: renders.
//
// Verification does not block other callers: while it is in flight
// View reports ViewLoading, so gated content is never shown before the
// Auth Service has confirmed the session. A verify result that returns
// after a newer navigation started is discarded.
//
// Navigations are issued through a navigate.Navigator and are domain
// aware: gated destinations are opened on the admin host and public ones
// leave it, unless the current host is loopback.
package security

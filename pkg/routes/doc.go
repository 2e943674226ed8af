// Package routes classifies navigable paths as public, gated or login.
//
// A single declarative Table is shared by the domain router and the
// security context, so both agree on what a path is. Rules are glob
// patterns with '/' as the separator and are evaluated in order; the
// first match wins and unmatched paths are public. Because exactly one
// class is returned per path, a path is never both login and gated.
//
//	t := routes.Default("/login")
//	t.Classify("/auth/dashboards/user/42") // routes.Gated
//	t.Classify("/login?next=x")            // routes.Login
//	t.Classify("/about")                   // routes.Public
//
// Paths are canonicalized before matching: duplicate slashes collapse,
// dot segments resolve and a trailing slash is dropped. Inputs that cannot
// be canonicalized (backslashes, NUL bytes, bad escapes, ".." above root)
// are classified as Gated so that malformed paths never render protected
// content without a verified session.
package routes

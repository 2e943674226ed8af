// Package httpclient provides the HTTP client every outgoing API call goes
// through.
//
// Interception is explicit: a Client owns an ordered chain of named
// Middleware wrapping its base transport. Installing a middleware under a
// name that is already present is a no-op, so repeated initialization
// never stacks duplicate wrappers.
//
//	c, _ := httpclient.New("https://api.example.com")
//	c.ObserveExpiry(httpclient.DefaultExpiryPolicy(), notifier)
//	c.Use("tracing", httpclient.Tracing())
//
// The expiry observer watches responses for 401 from protected API paths
// and signals the injected Signaler. It never changes, retries or closes
// the response the caller receives.
package httpclient

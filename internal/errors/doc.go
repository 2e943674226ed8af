// Package errors provides structured, actionable errors for the authgate CLI
// and its operators.
//
// Library packages report failures with sentinel errors from pkg/auth. This
// package is for the errors a person has to act on: a config file that does
// not validate, a token store backend that cannot be reached, an Auth Service
// URL that is wrong. Each error carries:
//   - a registered code (e.g. "A010") with a short message and detail
//   - a category (config, cli, session, storage, service)
//   - an optional suggestion and example
//   - a documentation link
//
// # Usage
//
//	err := errors.New("A011").
//	    WithDetail(`hosts.main "example" is not a hostname`).
//	    WithSuggestion("Set hosts.main to the bare public hostname.")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR A011: Invalid host configuration
//	//
//	//   hosts.main "example" is not a hostname
//	//
//	//   Hint: Set hosts.main to the bare public hostname.
//	//
//	//   Learn more: https://authgate.dev/docs/errors/A011
package errors

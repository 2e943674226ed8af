package routes

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Class is the access class of a path.
type Class int

const (
	// Public paths render without a session.
	Public Class = iota
	// Gated paths require a verified session.
	Gated
	// Login is the login surface; entering it clears any session.
	Login
)

// String returns the lowercase class name.
func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case Gated:
		return "gated"
	case Login:
		return "login"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ParseClass parses a class name as produced by String.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return Public, nil
	case "gated":
		return Gated, nil
	case "login":
		return Login, nil
	}
	return Public, fmt.Errorf("routes: unknown class %q", s)
}

// Rule maps a glob pattern to a class.
type Rule struct {
	Pattern string `json:"pattern" koanf:"pattern"`
	Class   string `json:"class" koanf:"class"`
}

// DashboardRoot is the root of the gated dashboard tree.
const DashboardRoot = "/auth/dashboards"

// DefaultRules returns the stock table: the login path, then the dashboard
// tree. Everything else is public.
func DefaultRules(loginPath string) []Rule {
	return []Rule{
		{Pattern: loginPath, Class: "login"},
		{Pattern: DashboardRoot, Class: "gated"},
		{Pattern: DashboardRoot + "/**", Class: "gated"},
	}
}

type compiledRule struct {
	pattern string
	class   Class
	glob    glob.Glob
}

// Table is an ordered, immutable set of classification rules.
// It is safe for concurrent use.
type Table struct {
	rules []compiledRule
}

// New compiles rules into a Table. Patterns are canonicalized with the same
// rules as request paths, so "/auth/dashboards/" and "/auth/dashboards"
// are the same pattern.
func New(rules []Rule) (*Table, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		class, err := ParseClass(r.Class)
		if err != nil {
			return nil, fmt.Errorf("routes: rule %d: %w", i, err)
		}
		pattern := r.Pattern
		if !strings.HasPrefix(pattern, "/") {
			return nil, fmt.Errorf("routes: rule %d: pattern %q must start with '/'", i, r.Pattern)
		}
		if len(pattern) > 1 {
			pattern = strings.TrimSuffix(pattern, "/")
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("routes: rule %d: pattern %q: %w", i, r.Pattern, err)
		}
		compiled = append(compiled, compiledRule{pattern: pattern, class: class, glob: g})
	}
	return &Table{rules: compiled}, nil
}

// Default returns the stock table for the given login path.
// Panics if loginPath is not a valid pattern (configuration bug).
func Default(loginPath string) *Table {
	t, err := New(DefaultRules(loginPath))
	if err != nil {
		panic("routes: invalid default table: " + err.Error())
	}
	return t
}

// Classify returns the class of target, which may carry a query string
// or fragment.
func (t *Table) Classify(target string) Class {
	class, _ := t.Match(target)
	return class
}

// Match returns the class of target and the pattern that decided it.
// The pattern is empty when no rule matched.
func (t *Table) Match(target string) (Class, string) {
	path, err := Canonicalize(target)
	if err != nil {
		return Gated, ""
	}
	for _, r := range t.rules {
		if r.glob.Match(path) {
			return r.class, r.pattern
		}
	}
	return Public, ""
}

// IsGated reports whether target is gated.
func (t *Table) IsGated(target string) bool {
	return t.Classify(target) == Gated
}

// IsLogin reports whether target is the login surface.
func (t *Table) IsLogin(target string) bool {
	return t.Classify(target) == Login
}

// Rules returns the table's rules in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		out[i] = Rule{Pattern: r.pattern, Class: r.class.String()}
	}
	return out
}

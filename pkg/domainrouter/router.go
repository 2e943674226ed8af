package domainrouter

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/vango-dev/authgate/pkg/metrics"
	"github.com/vango-dev/authgate/pkg/routes"
)

// DefaultMobileMaxWidth is the widest viewport, in CSS pixels, that counts
// as a mobile device.
const DefaultMobileMaxWidth = 768

// DefaultMobileUserAgent matches user agents of mobile operating systems.
var DefaultMobileUserAgent = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini|Mobile`)

// Rule identifies which routing rule decided a request.
type Rule int

const (
	RuleLoopback Rule = iota + 1
	RuleMainGatedToAdmin
	RuleAdminPublicToMain
	RuleMobileDesktopToMain
	RuleMainMobileToMobile
	RuleNone
)

// String returns a label-safe rule name.
func (r Rule) String() string {
	switch r {
	case RuleLoopback:
		return "loopback"
	case RuleMainGatedToAdmin:
		return "main_gated_to_admin"
	case RuleAdminPublicToMain:
		return "admin_public_to_main"
	case RuleMobileDesktopToMain:
		return "mobile_desktop_to_main"
	case RuleMainMobileToMobile:
		return "main_mobile_to_mobile"
	case RuleNone:
		return "none"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// Request is the input of a routing decision.
type Request struct {
	Host      string
	Path      string
	Query     string
	Fragment  string
	UserAgent string

	// ViewportWidth is the client's viewport width hint in CSS pixels;
	// 0 means the client sent none.
	ViewportWidth int
}

// Target returns path?query#fragment.
func (r Request) Target() string {
	t := r.Path
	if t == "" {
		t = "/"
	}
	if r.Query != "" {
		t += "?" + r.Query
	}
	if r.Fragment != "" {
		t += "#" + r.Fragment
	}
	return t
}

// Decision is the result of routing a request.
type Decision struct {
	Rule Rule
	// Location is the absolute redirect URL; empty when no redirect.
	Location string
}

// Redirect reports whether the decision is a redirect.
func (d Decision) Redirect() bool {
	return d.Location != ""
}

// Router decides cross-domain redirects.
type Router struct {
	hosts          Hosts
	table          *routes.Table
	mobileMaxWidth int
	mobileUA       *regexp.Regexp
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithMobileMaxWidth sets the mobile viewport threshold.
func WithMobileMaxWidth(px int) Option {
	return func(r *Router) {
		r.mobileMaxWidth = px
	}
}

// WithMobileUserAgent replaces the mobile user-agent pattern.
func WithMobileUserAgent(re *regexp.Regexp) Option {
	return func(r *Router) {
		r.mobileUA = re
	}
}

// WithMetrics records every decision.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// New creates a Router over hosts, classifying paths with table.
func New(hosts Hosts, table *routes.Table, opts ...Option) *Router {
	r := &Router{
		hosts:          hosts,
		table:          table,
		mobileMaxWidth: DefaultMobileMaxWidth,
		mobileUA:       DefaultMobileUserAgent,
		logger:         slog.Default().With("component", "domainrouter"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hosts returns the configured hosts.
func (r *Router) Hosts() Hosts {
	return r.hosts
}

// IsMobile reports whether a client is a mobile device: its user agent
// names a mobile OS, or its viewport hint is at most the threshold.
func (r *Router) IsMobile(userAgent string, viewportWidth int) bool {
	if viewportWidth > 0 && viewportWidth <= r.mobileMaxWidth {
		return true
	}
	return userAgent != "" && r.mobileUA.MatchString(userAgent)
}

// Decide applies the routing rules in priority order; the first match
// wins. The decision depends only on req; Decide also records the rule
// taken in the redirect metrics.
func (r *Router) Decide(req Request) Decision {
	d := r.decide(req)
	r.metrics.RecordRedirect(d.Rule.String())
	return d
}

// decide is the pure part of Decide.
func (r *Router) decide(req Request) Decision {
	domain := r.hosts.Classify(req.Host)
	if domain == DomainLoopback {
		return Decision{Rule: RuleLoopback}
	}

	gated := r.table.IsGated(req.Path)
	mobile := r.IsMobile(req.UserAgent, req.ViewportWidth)

	switch {
	case domain == DomainMain && gated:
		return r.redirect(RuleMainGatedToAdmin, DomainAdmin, req)
	case domain == DomainAdmin && !gated:
		return r.redirect(RuleAdminPublicToMain, DomainMain, req)
	case domain == DomainMobile && !mobile:
		return r.redirect(RuleMobileDesktopToMain, DomainMain, req)
	case domain == DomainMain && mobile && !gated:
		return r.redirect(RuleMainMobileToMobile, DomainMobile, req)
	}
	return Decision{Rule: RuleNone}
}

func (r *Router) redirect(rule Rule, to Domain, req Request) Decision {
	if r.hosts.Host(to) == "" {
		// The target domain is not configured; serve in place.
		return Decision{Rule: RuleNone}
	}
	return Decision{Rule: rule, Location: r.hosts.URL(to, req.Target())}
}

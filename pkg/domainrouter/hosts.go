package domainrouter

import (
	"net"
	"strings"

	"github.com/vango-dev/authgate/pkg/navigate"
)

// Domain is a logical domain the application is served from.
type Domain int

const (
	// DomainUnknown is any host that is not configured.
	DomainUnknown Domain = iota
	// DomainLoopback is localhost or a loopback IP.
	DomainLoopback
	DomainMain
	DomainAdmin
	DomainMobile
)

// String returns the domain name.
func (d Domain) String() string {
	switch d {
	case DomainLoopback:
		return "loopback"
	case DomainMain:
		return "main"
	case DomainAdmin:
		return "admin"
	case DomainMobile:
		return "mobile"
	default:
		return "unknown"
	}
}

// Hosts are the configured hostnames of the three logical domains.
type Hosts struct {
	Main   string `json:"main" koanf:"main"`
	Admin  string `json:"admin" koanf:"admin"`
	Mobile string `json:"mobile" koanf:"mobile"`

	// Scheme of generated cross-domain URLs (default "https").
	Scheme string `json:"scheme" koanf:"scheme"`
}

// Classify maps host, with or without a port, to its domain.
// Loopback hosts win over configured names.
func (h Hosts) Classify(host string) Domain {
	if IsLoopback(host) {
		return DomainLoopback
	}
	switch {
	case hostMatches(h.Admin, host):
		return DomainAdmin
	case hostMatches(h.Mobile, host):
		return DomainMobile
	case hostMatches(h.Main, host):
		return DomainMain
	}
	return DomainUnknown
}

// Host returns the configured hostname for d, or "".
func (h Hosts) Host(d Domain) string {
	switch d {
	case DomainMain:
		return h.Main
	case DomainAdmin:
		return h.Admin
	case DomainMobile:
		return h.Mobile
	}
	return ""
}

// URL returns an absolute URL for target on domain d. target keeps its
// path, query and fragment verbatim.
func (h Hosts) URL(d Domain, target string) string {
	return navigate.AbsoluteURL(h.Scheme, h.Host(d), target)
}

// IsLoopback reports whether host (optionally with a port) is localhost
// or a loopback IP address.
func IsLoopback(host string) bool {
	name := stripPort(host)
	if strings.EqualFold(name, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(name, "[]"))
	return ip != nil && ip.IsLoopback()
}

func hostMatches(configured, host string) bool {
	if configured == "" || host == "" {
		return false
	}
	return strings.EqualFold(configured, host) || strings.EqualFold(stripPort(configured), stripPort(host))
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	DocURL     string
}

const docBase = "https://authgate.dev/docs/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (A010-A029)
	// ============================================

	"A010": {
		Category:   CategoryConfig,
		Message:    "Config file could not be loaded",
		Detail:     "The configuration file exists but is not valid YAML, or could not be read.",
		Suggestion: "Check the file with a YAML linter, or pass --config to point at another file.",
		DocURL:     docBase + "A010",
	},
	"A011": {
		Category:   CategoryConfig,
		Message:    "Invalid host configuration",
		Detail:     "The main, admin and mobile hosts must be distinct bare hostnames.",
		Suggestion: "Set hosts.main, hosts.admin and hosts.mobile without scheme or path.",
		DocURL:     docBase + "A011",
	},
	"A012": {
		Category:   CategoryConfig,
		Message:    "Invalid Auth Service URL",
		Detail:     "The Auth Service base URL must be an absolute http or https URL.",
		Suggestion: "Set auth.url, e.g. https://api.example.com.",
		DocURL:     docBase + "A012",
	},
	"A013": {
		Category: CategoryConfig,
		Message:  "Invalid route rule",
		Detail:   "A route rule has a pattern that does not compile or a class that is not public, gated or login.",
		DocURL:   docBase + "A013",
	},
	"A014": {
		Category:   CategoryConfig,
		Message:    "Invalid token store configuration",
		Detail:     "The store backend must be one of memory, file, s3 or redis, with its required settings.",
		Suggestion: "Set store.backend and the matching store.<backend> section.",
		DocURL:     docBase + "A014",
	},
	"A015": {
		Category: CategoryConfig,
		Message:  "Invalid path",
		Detail:   "Login, public and admin home paths must be absolute paths starting with '/'.",
		DocURL:   docBase + "A015",
	},
	"A016": {
		Category:   CategoryConfig,
		Message:    "Invalid server configuration",
		Detail:     "The listen address or upstream URL is not usable.",
		Suggestion: "Use host:port for listen addresses and an absolute URL for server.upstream.",
		DocURL:     docBase + "A016",
	},
	"A017": {
		Category: CategoryConfig,
		Message:  "Invalid logging configuration",
		Detail:   "log.level must be debug, info, warn or error and log.format must be json or text.",
		DocURL:   docBase + "A017",
	},

	// ============================================
	// CLI Errors (A030-A049)
	// ============================================

	"A030": {
		Category: CategoryCLI,
		Message:  "Missing argument",
		Detail:   "The command requires an argument that was not provided.",
		DocURL:   docBase + "A030",
	},
	"A031": {
		Category:   CategoryCLI,
		Message:    "Could not read password",
		Detail:     "No terminal is attached and no password file was given.",
		Suggestion: "Run interactively, or pass --password-file.",
		DocURL:     docBase + "A031",
	},
	"A032": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "An HTTP server stopped with an error.",
		DocURL:   docBase + "A032",
	},

	// ============================================
	// Session Errors (A050-A069)
	// ============================================

	"A050": {
		Category:   CategorySession,
		Message:    "Not logged in",
		Detail:     "The token store holds no session token.",
		Suggestion: "Run `authgate login` first.",
		DocURL:     docBase + "A050",
	},
	"A051": {
		Category: CategorySession,
		Message:  "Login failed",
		Detail:   "The Auth Service rejected the credentials or returned an unusable response.",
		DocURL:   docBase + "A051",
	},
	"A052": {
		Category:   CategorySession,
		Message:    "Session expired",
		Detail:     "The Auth Service reported the session token as expired.",
		Suggestion: "Run `authgate refresh`, or `authgate login` to start a new session.",
		DocURL:     docBase + "A052",
	},
	"A053": {
		Category:   CategorySession,
		Message:    "Refresh failed",
		Detail:     "The refresh token was missing or rejected. The session has been cleared.",
		Suggestion: "Run `authgate login`.",
		DocURL:     docBase + "A053",
	},

	// ============================================
	// Storage Errors (A070-A089)
	// ============================================

	"A070": {
		Category: CategoryStorage,
		Message:  "Token store backend setup failed",
		Detail:   "The configured token store backend could not be constructed.",
		DocURL:   docBase + "A070",
	},
	"A071": {
		Category:   CategoryStorage,
		Message:    "Token store backend unreachable",
		Detail:     "The backend did not answer within the retry budget.",
		Suggestion: "Check that the redis or S3 endpoint is reachable from this host.",
		DocURL:     docBase + "A071",
	},
	"A072": {
		Category: CategoryStorage,
		Message:  "Token store read/write failed",
		Detail:   "Loading or persisting the session failed.",
		DocURL:   docBase + "A072",
	},

	// ============================================
	// Service Errors (A090-A099)
	// ============================================

	"A090": {
		Category:   CategoryService,
		Message:    "Auth Service unreachable",
		Detail:     "The request to the Auth Service failed before a response arrived.",
		Suggestion: "Check auth.url and network connectivity.",
		DocURL:     docBase + "A090",
	},
	"A091": {
		Category: CategoryService,
		Message:  "Malformed Auth Service response",
		Detail:   "The Auth Service answered with a body that is not the expected JSON envelope.",
		DocURL:   docBase + "A091",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}

package config

import (
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/vango-dev/authgate/internal/errors"
	"github.com/vango-dev/authgate/pkg/domainrouter"
	"github.com/vango-dev/authgate/pkg/routes"
)

const (
	// FileName is the configuration file looked up in the working directory.
	FileName = "authgate.yaml"

	// DefaultAuthURL points at the development stub's default listener.
	DefaultAuthURL = "http://127.0.0.1:8081"

	// DefaultAdminRole is the role whose default destination is the admin dashboards.
	DefaultAdminRole = "super-admin"
)

// Store backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendS3     = "s3"
	BackendRedis  = "redis"
)

// Config is the complete authgate configuration.
type Config struct {
	// Hosts are the hostnames of the main, admin and mobile domains.
	Hosts domainrouter.Hosts `koanf:"hosts"`

	// Auth configures the Auth Service client.
	Auth AuthConfig `koanf:"auth"`

	// Paths are the well-known application paths.
	Paths PathsConfig `koanf:"paths"`

	// AdminRole is the role sent to the admin dashboards after login.
	AdminRole string `koanf:"admin_role"`

	// Routes is the route classification table. Empty means the stock table
	// for Paths.Login.
	Routes []routes.Rule `koanf:"routes"`

	Router RouterConfig `koanf:"router"`
	Store  StoreConfig  `koanf:"store"`
	Server ServerConfig `koanf:"server"`
	Agent  AgentConfig  `koanf:"agent"`
	Stub   StubConfig   `koanf:"stub"`
	Log    LogConfig    `koanf:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// AuthConfig configures the Auth Service client.
type AuthConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// PathsConfig holds application paths.
type PathsConfig struct {
	Login     string `koanf:"login"`
	Public    string `koanf:"public"`
	AdminHome string `koanf:"admin_home"`
}

// RouterConfig tunes device detection.
type RouterConfig struct {
	MobileMaxWidth  int    `koanf:"mobile_max_width"`
	MobileUserAgent string `koanf:"mobile_user_agent"`
}

// StoreConfig selects and configures the token store backend.
type StoreConfig struct {
	Backend string `koanf:"backend"`

	// ClientID names this client's session in shared backends (s3, redis).
	ClientID string `koanf:"client_id"`

	File  FileStoreConfig  `koanf:"file"`
	S3    S3StoreConfig    `koanf:"s3"`
	Redis RedisStoreConfig `koanf:"redis"`
}

// FileStoreConfig configures the file backend.
type FileStoreConfig struct {
	Path string `koanf:"path"`
}

// S3StoreConfig configures the S3 backend. Credentials come from the
// standard AWS environment variables.
type S3StoreConfig struct {
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	PathStyle bool   `koanf:"path_style"`
}

// RedisStoreConfig configures the Redis backend.
type RedisStoreConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Prefix   string        `koanf:"prefix"`
	TTL      time.Duration `koanf:"ttl"`

	// ConnectTimeout bounds the startup ping retries.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// ServerConfig configures `authgate serve`.
type ServerConfig struct {
	Listen   string `koanf:"listen"`
	Upstream string `koanf:"upstream"`

	// MetricsPath serves Prometheus metrics. Empty disables it.
	MetricsPath string `koanf:"metrics_path"`

	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// AgentConfig configures `authgate agent`.
type AgentConfig struct {
	Listen string `koanf:"listen"`

	// AllowedOrigins may open the prompt websocket. Empty allows same-origin only.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// StubConfig configures `authgate stub`.
type StubConfig struct {
	Listen     string        `koanf:"listen"`
	SigningKey string        `koanf:"signing_key"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
	Users      []StubUser    `koanf:"users"`
}

// StubUser is an account seeded into the stub.
type StubUser struct {
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	Role     string `koanf:"role"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// New returns a configuration with defaults.
func New() *Config {
	return &Config{
		Hosts: domainrouter.Hosts{
			Main:   "example.com",
			Admin:  "admin.example.com",
			Mobile: "m.example.com",
			Scheme: "https",
		},
		Auth: AuthConfig{
			URL:     DefaultAuthURL,
			Timeout: 15 * time.Second,
		},
		Paths: PathsConfig{
			Login:     "/login",
			Public:    "/",
			AdminHome: routes.DashboardRoot,
		},
		AdminRole: DefaultAdminRole,
		Router: RouterConfig{
			MobileMaxWidth: domainrouter.DefaultMobileMaxWidth,
		},
		Store: StoreConfig{
			Backend:  BackendFile,
			ClientID: "default",
			File:     FileStoreConfig{Path: DefaultStorePath()},
			S3:       S3StoreConfig{Prefix: "authgate/sessions/"},
			Redis: RedisStoreConfig{
				Addr:           "127.0.0.1:6379",
				Prefix:         "authgate:session:",
				ConnectTimeout: 10 * time.Second,
			},
		},
		Server: ServerConfig{
			Listen:            ":8080",
			MetricsPath:       "/metrics",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Agent: AgentConfig{
			Listen: "127.0.0.1:8090",
		},
		Stub: StubConfig{
			Listen:     "127.0.0.1:8081",
			TokenTTL:   15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultStorePath returns the default session file location.
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "authgate", "session.json")
}

// Path returns the file the config was loaded from, or "".
func (c *Config) Path() string {
	return c.configPath
}

// RouteTable compiles the route classification table.
func (c *Config) RouteTable() (*routes.Table, error) {
	return routes.New(c.Routes)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()

	if c.Hosts.Scheme == "" {
		c.Hosts.Scheme = d.Hosts.Scheme
	}
	c.Hosts.Main = normalizeHost(c.Hosts.Main)
	c.Hosts.Admin = normalizeHost(c.Hosts.Admin)
	c.Hosts.Mobile = normalizeHost(c.Hosts.Mobile)

	if c.Auth.URL == "" {
		c.Auth.URL = d.Auth.URL
	}
	c.Auth.URL = strings.TrimRight(c.Auth.URL, "/")
	if c.Auth.Timeout <= 0 {
		c.Auth.Timeout = d.Auth.Timeout
	}

	if c.Paths.Login == "" {
		c.Paths.Login = d.Paths.Login
	}
	if c.Paths.Public == "" {
		c.Paths.Public = d.Paths.Public
	}
	if c.Paths.AdminHome == "" {
		c.Paths.AdminHome = d.Paths.AdminHome
	}
	if c.AdminRole == "" {
		c.AdminRole = d.AdminRole
	}
	if len(c.Routes) == 0 {
		c.Routes = routes.DefaultRules(c.Paths.Login)
	}

	if c.Router.MobileMaxWidth == 0 {
		c.Router.MobileMaxWidth = d.Router.MobileMaxWidth
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = d.Store.Backend
	}
	if c.Store.ClientID == "" {
		c.Store.ClientID = d.Store.ClientID
	}
	if c.Store.File.Path == "" {
		c.Store.File.Path = d.Store.File.Path
	}
	if c.Store.S3.Prefix == "" {
		c.Store.S3.Prefix = d.Store.S3.Prefix
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = d.Store.Redis.Prefix
	}
	if c.Store.Redis.ConnectTimeout <= 0 {
		c.Store.Redis.ConnectTimeout = d.Store.Redis.ConnectTimeout
	}

	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		c.Server.ReadHeaderTimeout = d.Server.ReadHeaderTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Agent.Listen == "" {
		c.Agent.Listen = d.Agent.Listen
	}

	if c.Stub.Listen == "" {
		c.Stub.Listen = d.Stub.Listen
	}
	if c.Stub.TokenTTL <= 0 {
		c.Stub.TokenTTL = d.Stub.TokenTTL
	}
	if c.Stub.RefreshTTL <= 0 {
		c.Stub.RefreshTTL = d.Stub.RefreshTTL
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

func normalizeHost(h string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(h), "."))
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.validateHosts(); err != nil {
		return err
	}

	u, err := url.Parse(c.Auth.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("A012").
			WithField("auth.url").
			WithDetailf("%q is not an absolute http(s) URL", c.Auth.URL)
	}

	for _, p := range []struct{ field, value string }{
		{"paths.login", c.Paths.Login},
		{"paths.public", c.Paths.Public},
		{"paths.admin_home", c.Paths.AdminHome},
	} {
		if !strings.HasPrefix(p.value, "/") {
			return errors.New("A015").WithField(p.field).WithDetailf("%q does not start with '/'", p.value)
		}
	}

	if _, err := c.RouteTable(); err != nil {
		return errors.New("A013").WithField("routes").Wrap(err)
	}

	if c.Router.MobileMaxWidth < 0 {
		return errors.New("A011").
			WithField("router.mobile_max_width").
			WithDetail("The mobile breakpoint must be positive.")
	}
	if c.Router.MobileUserAgent != "" {
		if _, err := regexp.Compile(c.Router.MobileUserAgent); err != nil {
			return errors.New("A011").WithField("router.mobile_user_agent").Wrap(err)
		}
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return errors.New("A016").WithField("server.listen").Wrap(err)
	}
	if _, _, err := net.SplitHostPort(c.Agent.Listen); err != nil {
		return errors.New("A016").WithField("agent.listen").Wrap(err)
	}
	if _, _, err := net.SplitHostPort(c.Stub.Listen); err != nil {
		return errors.New("A016").WithField("stub.listen").Wrap(err)
	}
	if c.Server.Upstream != "" {
		u, err := url.Parse(c.Server.Upstream)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("A016").
				WithField("server.upstream").
				WithDetailf("%q is not an absolute URL", c.Server.Upstream)
		}
	}
	if c.Server.MetricsPath != "" && !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return errors.New("A015").WithField("server.metrics_path")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("A017").WithField("log.level").WithDetailf("unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return errors.New("A017").WithField("log.format").WithDetailf("unknown format %q", c.Log.Format)
	}

	return nil
}

func (c *Config) validateHosts() error {
	seen := make(map[string]string, 3)
	for _, e := range []struct{ field, host string }{
		{"hosts.main", c.Hosts.Main},
		{"hosts.admin", c.Hosts.Admin},
		{"hosts.mobile", c.Hosts.Mobile},
	} {
		field, h := e.field, e.host
		if h == "" {
			return errors.New("A011").WithField(field).WithDetail("The host is empty.")
		}
		if strings.ContainsAny(h, "/:@ ?#") {
			return errors.New("A011").
				WithField(field).
				WithDetailf("%q is not a bare hostname", h).
				WithExample("hosts:\n  main: example.com\n  admin: admin.example.com\n  mobile: m.example.com")
		}
		if other, dup := seen[h]; dup {
			return errors.New("A011").WithField(field).WithDetailf("%q is also used by %s", h, other)
		}
		seen[h] = field
	}
	if c.Hosts.Scheme != "http" && c.Hosts.Scheme != "https" {
		return errors.New("A011").WithField("hosts.scheme").WithDetailf("unknown scheme %q", c.Hosts.Scheme)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.File.Path == "" {
			return errors.New("A014").WithField("store.file.path")
		}
	case BackendS3:
		if c.Store.S3.Bucket == "" {
			return errors.New("A014").
				WithField("store.s3.bucket").
				WithDetail("The s3 backend needs a bucket.")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("A014").
				WithField("store.redis.addr").
				WithDetail("The redis backend needs an address.")
		}
	default:
		return errors.New("A014").
			WithField("store.backend").
			WithDetailf("unknown backend %q", c.Store.Backend).
			WithExample("store:\n  backend: file")
	}
	return nil
}

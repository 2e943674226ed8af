package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/vango-dev/authgate/internal/errors"
	"github.com/vango-dev/authgate/pkg/routes"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Auth.URL != DefaultAuthURL {
		t.Errorf("Auth.URL = %q, want %q", cfg.Auth.URL, DefaultAuthURL)
	}
	if cfg.Paths.Login != "/login" {
		t.Errorf("Paths.Login = %q", cfg.Paths.Login)
	}
	if cfg.Paths.AdminHome != routes.DashboardRoot {
		t.Errorf("Paths.AdminHome = %q", cfg.Paths.AdminHome)
	}
	if cfg.AdminRole != DefaultAdminRole {
		t.Errorf("AdminRole = %q", cfg.AdminRole)
	}
	if cfg.Store.Backend != BackendFile {
		t.Errorf("Store.Backend = %q", cfg.Store.Backend)
	}
}

func TestDefaultsValidate(t *testing.T) {
	cfg := New()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if len(cfg.Routes) != len(routes.DefaultRules("/login")) {
		t.Errorf("Routes = %v, want stock table", cfg.Routes)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
	if cfg.Hosts.Main != "example.com" {
		t.Errorf("Hosts.Main = %q", cfg.Hosts.Main)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	if !errors.Is(err, "A010") {
		t.Fatalf("err = %v, want A010", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
hosts:
  main: Shop.Example.org
  admin: admin.example.org
  mobile: m.example.org
auth:
  url: https://api.example.org/
  timeout: 3s
paths:
  login: /signin
routes:
  - pattern: /signin
    class: login
  - pattern: /billing/**
    class: gated
store:
  backend: redis
  redis:
    addr: redis:6379
    ttl: 1h
log:
  level: DEBUG
  format: json
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Path() != path {
		t.Errorf("Path() = %q", cfg.Path())
	}
	if cfg.Hosts.Main != "shop.example.org" {
		t.Errorf("Hosts.Main = %q, want lowercased", cfg.Hosts.Main)
	}
	if cfg.Hosts.Scheme != "https" {
		t.Errorf("Hosts.Scheme = %q, want default", cfg.Hosts.Scheme)
	}
	if cfg.Auth.URL != "https://api.example.org" {
		t.Errorf("Auth.URL = %q, want trailing slash trimmed", cfg.Auth.URL)
	}
	if cfg.Auth.Timeout != 3*time.Second {
		t.Errorf("Auth.Timeout = %v", cfg.Auth.Timeout)
	}
	if len(cfg.Routes) != 2 {
		t.Fatalf("Routes = %v, want the two configured rules only", cfg.Routes)
	}
	if cfg.Store.Redis.TTL != time.Hour {
		t.Errorf("Store.Redis.TTL = %v", cfg.Store.Redis.TTL)
	}
	if cfg.Store.Redis.Prefix != "authgate:session:" {
		t.Errorf("Store.Redis.Prefix = %q, want default kept", cfg.Store.Redis.Prefix)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}

	table, err := cfg.RouteTable()
	if err != nil {
		t.Fatal(err)
	}
	if !table.IsGated("/billing/invoices") || !table.IsLogin("/signin") {
		t.Error("configured route table not applied")
	}
}

func TestLoadDefaultRulesFollowLoginPath(t *testing.T) {
	path := writeConfig(t, "paths:\n  login: /signin\n")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	table, err := cfg.RouteTable()
	if err != nil {
		t.Fatal(err)
	}
	if !table.IsLogin("/signin") {
		t.Error("stock table should use the configured login path")
	}
	if !table.IsGated(routes.DashboardRoot + "/users") {
		t.Error("stock table should gate the dashboards")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "hosts: [unterminated\n")
	_, err := Load(path, nil)
	if !errors.Is(err, "A010") {
		t.Fatalf("err = %v, want A010", err)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  url: https://from-file.example.com
store:
  backend: memory
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse([]string{"--auth-url", "https://from-flag.example.com", "--log-format", "json"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.URL != "https://from-flag.example.com" {
		t.Errorf("Auth.URL = %q, want flag value", cfg.Auth.URL)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %q, unset flag must not override file", cfg.Store.Backend)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q", cfg.Log.Format)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
		wantText string
	}{
		{
			name:     "empty admin host",
			mutate:   func(c *Config) { c.Hosts.Admin = "" },
			wantCode: "A011",
			wantText: "hosts.admin",
		},
		{
			name:     "host with scheme",
			mutate:   func(c *Config) { c.Hosts.Main = "https://example.com" },
			wantCode: "A011",
			wantText: "hosts.main",
		},
		{
			name:     "duplicate hosts",
			mutate:   func(c *Config) { c.Hosts.Mobile = c.Hosts.Main },
			wantCode: "A011",
			wantText: "hosts.mobile",
		},
		{
			name:     "relative auth url",
			mutate:   func(c *Config) { c.Auth.URL = "api.example.com" },
			wantCode: "A012",
		},
		{
			name:     "relative login path",
			mutate:   func(c *Config) { c.Paths.Login = "login" },
			wantCode: "A015",
			wantText: "paths.login",
		},
		{
			name: "bad route class",
			mutate: func(c *Config) {
				c.Routes = []routes.Rule{{Pattern: "/x", Class: "secret"}}
			},
			wantCode: "A013",
		},
		{
			name:     "bad mobile user agent",
			mutate:   func(c *Config) { c.Router.MobileUserAgent = "(" },
			wantCode: "A011",
		},
		{
			name:     "unknown backend",
			mutate:   func(c *Config) { c.Store.Backend = "etcd" },
			wantCode: "A014",
		},
		{
			name: "s3 without bucket",
			mutate: func(c *Config) {
				c.Store.Backend = BackendS3
				c.Store.S3.Bucket = ""
			},
			wantCode: "A014",
			wantText: "store.s3.bucket",
		},
		{
			name:     "bad listen",
			mutate:   func(c *Config) { c.Server.Listen = "8080" },
			wantCode: "A016",
		},
		{
			name:     "relative upstream",
			mutate:   func(c *Config) { c.Server.Upstream = "localhost:3000/app" },
			wantCode: "A016",
		},
		{
			name:     "unknown log level",
			mutate:   func(c *Config) { c.Log.Level = "verbose" },
			wantCode: "A017",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantCode) {
				t.Fatalf("Validate() = %v, want %s", err, tt.wantCode)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("Validate() = %q, want mention of %q", err.Error(), tt.wantText)
			}
		})
	}
}

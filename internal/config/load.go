package config

import (
	stderrors "errors"
	"io/fs"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/vango-dev/authgate/internal/errors"
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"main-host":    "hosts.main",
	"admin-host":   "hosts.admin",
	"mobile-host":  "hosts.mobile",
	"auth-url":     "auth.url",
	"store":        "store.backend",
	"store-path":   "store.file.path",
	"client-id":    "store.client_id",
	"s3-bucket":    "store.s3.bucket",
	"redis-addr":   "store.redis.addr",
	"listen":       "server.listen",
	"upstream":     "server.upstream",
	"agent-listen": "agent.listen",
	"stub-listen":  "stub.listen",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// RegisterFlags adds the config override flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("main-host", "", "main domain hostname")
	flags.String("admin-host", "", "admin domain hostname")
	flags.String("mobile-host", "", "mobile domain hostname")
	flags.String("auth-url", "", "Auth Service base URL")
	flags.String("store", "", "token store backend (memory, file, s3, redis)")
	flags.String("store-path", "", "session file for the file backend")
	flags.String("client-id", "", "session name in shared backends")
	flags.String("s3-bucket", "", "bucket for the s3 backend")
	flags.String("redis-addr", "", "address for the redis backend")
	flags.String("listen", "", "edge server listen address")
	flags.String("upstream", "", "application upstream URL")
	flags.String("agent-listen", "", "session agent listen address")
	flags.String("stub-listen", "", "stub Auth Service listen address")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, text)")
}

// Load builds the configuration from defaults, the YAML file at path and
// the explicitly set flags. An empty path loads FileName from the
// working directory if it exists; a non-empty path must exist. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = FileName
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		switch {
		case stderrors.Is(err, fs.ErrNotExist) && !explicit:
			path = ""
		case stderrors.Is(err, fs.ErrNotExist):
			return nil, errors.New("A010").
				WithField("--config").
				WithDetailf("%s does not exist", path)
		default:
			return nil, errors.New("A010").WithDetailf("%s could not be parsed", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, errors.New("A010").WithDetail("Command-line flags could not be applied.").Wrap(err)
		}
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.New("A010").WithDetailf("%s has values of the wrong type", path).Wrap(err)
	}
	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/authgate/internal/config"
	"github.com/vango-dev/authgate/internal/errors"
	"github.com/vango-dev/authgate/internal/logging"
)

// jsonErrors prints command errors as JSON instead of formatted text.
var jsonErrors bool

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if jsonErrors {
			errors.FprintJSON(os.Stderr, err)
		} else {
			errors.Fprint(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		noColor    bool
	)

	rootCmd := &cobra.Command{
		Use:   "authgate",
		Short: "Session and multi-domain access control",
		Long: `authgate keeps a client's session, verifies it against the Auth Service,
and routes requests between the main, admin and mobile domains.

  • serve   edge server: domain/device redirects in front of the app
  • agent   local session agent with the session-expired prompt
  • login, logout, whoami, open, refresh   drive the session from a terminal
  • stub    development Auth Service`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				errors.DisableColors()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default ./"+config.FileName+" if present)")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&jsonErrors, "json-errors", false, "print errors as JSON")
	config.RegisterFlags(flags)

	load := func(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return nil, nil, err
		}
		logger := logging.SetDefault(logging.Options{
			Service: "authgate",
			Version: version,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
		})
		return cfg, logger, nil
	}

	rootCmd.AddCommand(
		serveCmd(load),
		routeCmd(load),
		loginCmd(load),
		logoutCmd(load),
		whoamiCmd(load),
		openCmd(load),
		refreshCmd(load),
		agentCmd(load),
		stubCmd(load),
		versionCmd(),
	)
	return rootCmd
}

// loader loads the configuration and installs the default logger.
type loader func(cmd *cobra.Command) (*config.Config, *slog.Logger, error)

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

package main

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/authgate/internal/config"
	"github.com/vango-dev/authgate/internal/errors"
	"github.com/vango-dev/authgate/pkg/auth"
	"github.com/vango-dev/authgate/pkg/authstub"
)

func stubCmd(load loader) *cobra.Command {
	var users []string

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run the development Auth Service",
		Long: `Run an in-memory Auth Service implementing the login, verify, logout
and refresh contract. Accounts come from stub.users in the config file and
from --user flags.

Examples:
  authgate stub --user admin@example.com:secret:super-admin
  authgate stub --stub-listen 127.0.0.1:9001`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			seed, err := stubUsers(cfg.Stub.Users, users)
			if err != nil {
				return err
			}

			opts := []authstub.Option{
				authstub.WithTokenTTL(cfg.Stub.TokenTTL),
				authstub.WithRefreshTTL(cfg.Stub.RefreshTTL),
				authstub.WithLogger(logger.With("component", "authstub")),
			}
			if cfg.Stub.SigningKey != "" {
				opts = append(opts, authstub.WithSigningKey([]byte(cfg.Stub.SigningKey)))
			}
			stub := authstub.New(opts...)
			for _, u := range seed {
				stored, err := stub.AddUser(u.Email, u.Password, auth.User{Name: u.Name, Role: u.Role})
				if err != nil {
					return errors.New("A030").WithField("stub.users").Wrap(err)
				}
				info("account %s", describeUser(&stored))
			}
			if len(seed) == 0 {
				warn("No accounts configured; every login will fail")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			success("Stub Auth Service listening on %s", cfg.Stub.Listen)
			return runServer(ctx, &http.Server{
				Addr:              cfg.Stub.Listen,
				Handler:           stub,
				ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			}, cfg.Server.ShutdownTimeout, logger)
		},
	}

	cmd.Flags().StringArrayVar(&users, "user", nil, "account as email:password[:role[:name]] (repeatable)")
	return cmd
}

// stubUsers merges configured accounts with email:password[:role[:name]] flags.
func stubUsers(configured []config.StubUser, flags []string) ([]config.StubUser, error) {
	out := append([]config.StubUser(nil), configured...)
	for _, f := range flags {
		parts := strings.SplitN(f, ":", 4)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.New("A030").
				WithField("--user").
				WithDetailf("%q is not email:password[:role[:name]]", f).
				WithExample("authgate stub --user admin@example.com:secret:super-admin")
		}
		u := config.StubUser{Email: parts[0], Password: parts[1]}
		if len(parts) > 2 {
			u.Role = parts[2]
		}
		if len(parts) > 3 {
			u.Name = parts[3]
		}
		out = append(out, u)
	}
	return out, nil
}

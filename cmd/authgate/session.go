package main

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vango-dev/authgate/internal/errors"
	"github.com/vango-dev/authgate/pkg/auth"
	"github.com/vango-dev/authgate/pkg/expiry"
	"github.com/vango-dev/authgate/pkg/metrics"
	"github.com/vango-dev/authgate/pkg/navigate"
	"github.com/vango-dev/authgate/pkg/routes"
	"github.com/vango-dev/authgate/pkg/security"
)

// printNavigator reports the navigations a terminal session would perform.
func printNavigator(w io.Writer) navigate.Navigator {
	return navigate.Funcs{
		NavigateFunc: func(path string) { fmt.Fprintf(w, "  → %s\n", path) },
		AssignFunc:   func(rawURL string) { fmt.Fprintf(w, "  → %s\n", rawURL) },
		ReloadFunc:   func() { fmt.Fprintln(w, "  ↻ reload") },
	}
}

// terminalPresenter shows the expired prompt as a warning.
var terminalPresenter = expiry.PresenterFuncs{
	Show: func() {
		warn("Session expired")
		info("Run `authgate refresh` to continue, or `authgate login` to start over")
	},
}

// localMetrics returns collectors on a private registry; terminal commands
// do not export them.
func localMetrics() *metrics.Metrics {
	return metrics.New(metrics.WithRegistry(prometheus.NewRegistry()))
}

func loginCmd(load loader) *cobra.Command {
	var (
		passwordFile string
		host         string
	)

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and store the session",
		Long: `Log in against the Auth Service and persist the session in the token store.

The password is read from --password-file, or prompted for when a terminal
is attached.

Examples:
  authgate login admin@example.com
  authgate login admin@example.com --password-file ./pw.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("A030").WithDetail("login needs an email address.").
					WithExample("authgate login admin@example.com")
			}
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			password, err := readPassword(passwordFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s, err := openSession(cmd.Context(), cfg, logger, localMetrics(), printNavigator(out), terminalPresenter)
			if err != nil {
				return err
			}
			defer s.Close()

			if host == "" {
				host = cfg.Hosts.Main
			}
			s.ctx.Navigate(cmd.Context(), security.Location{Host: host, Path: cfg.Paths.Login})

			res := s.ctx.Login(cmd.Context(), args[0], password)
			if !res.Success {
				return errors.New("A051").WithDetail(res.Message).Wrap(res.Err)
			}
			success("Logged in as %s", describeUser(res.User))
			return nil
		},
	}

	cmd.Flags().StringVar(&passwordFile, "password-file", "", "file containing the password, or - to prompt")
	cmd.Flags().StringVar(&host, "host", "", "host the login page is served on (default hosts.main)")
	return cmd
}

// readPassword reads the password from path, or prompts on the terminal
// when path is empty or "-".
func readPassword(path string) (string, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errors.New("A031").WithField("--password-file").Wrap(err)
		}
		return string(bytes.TrimRight(data, "\r\n")), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("A031")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.New("A031").WithDetail("Reading from the terminal failed.").Wrap(err)
	}
	return string(data), nil
}

func logoutCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the stored session",
		Long: `Notify the Auth Service and clear the stored session.

The session is cleared even when the Auth Service cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg, logger, localMetrics(), printNavigator(cmd.OutOrStdout()), terminalPresenter)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.ctx.Logout(cmd.Context()); err != nil {
				return errors.New("A072").Wrap(err)
			}
			success("Logged out")
			return nil
		},
	}
}

func whoamiCmd(load loader) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user",
		Long: `Verify the stored session token and print the user it belongs to.

With --offline the cached profile is printed without contacting the Auth Service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Get(cmd.Context())
			if err != nil {
				return errors.New("A072").Wrap(err)
			}
			if !sess.HasToken() {
				return errors.New("A050")
			}

			user := sess.User
			if !offline {
				service, _, err := newAuthClient(cfg, localMetrics(), logger)
				if err != nil {
					return err
				}
				user, err = service.Verify(cmd.Context(), sess.SessionToken)
				switch {
				case stderrors.Is(err, auth.ErrExpiredToken):
					return errors.New("A052").Wrap(err)
				case stderrors.Is(err, auth.ErrUnreachable):
					return errors.New("A090").Wrap(err)
				case stderrors.Is(err, auth.ErrMalformedResponse):
					return errors.New("A091").Wrap(err)
				case err != nil:
					return errors.New("A050").WithDetail("The stored session token was rejected.").Wrap(err)
				}
				if err := store.SetUser(cmd.Context(), user); err != nil {
					return errors.New("A072").Wrap(err)
				}
			}

			printUser(cmd.OutOrStdout(), user)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "print the cached profile without verifying")
	return cmd
}

func printUser(w io.Writer, u *auth.User) {
	if u == nil {
		fmt.Fprintln(w, "no cached profile")
		return
	}
	fmt.Fprintf(w, "id:     %s\n", u.ID)
	fmt.Fprintf(w, "email:  %s\n", u.Email)
	if u.Name != "" {
		fmt.Fprintf(w, "name:   %s\n", u.Name)
	}
	if u.Role != "" {
		fmt.Fprintf(w, "role:   %s\n", u.Role)
	}
	if u.PlanTier != "" {
		fmt.Fprintf(w, "plan:   %s\n", u.PlanTier)
	}
}

func describeUser(u *auth.User) string {
	if u == nil {
		return "unknown user"
	}
	if u.Role == "" {
		return u.Email
	}
	return fmt.Sprintf("%s (%s)", u.Email, u.Role)
}

func openCmd(load loader) *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Navigate to a path with the stored session",
		Long: `Run a navigation through the security context and report what happens:
render, redirect to login, or the session-expired prompt.

Examples:
  authgate open /auth/dashboards/users
  authgate open /pricing --host m.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			s, err := openSession(cmd.Context(), cfg, logger, localMetrics(), printNavigator(out), terminalPresenter)
			if err != nil {
				return err
			}
			defer s.Close()

			if host == "" {
				host = cfg.Hosts.Main
			}
			path, query, fragment := routes.SplitTarget(args[0])
			outcome := s.ctx.Navigate(cmd.Context(), security.Location{
				Host:     host,
				Path:     path,
				Query:    query,
				Fragment: fragment,
			})

			switch outcome.Kind {
			case security.OutcomeRender:
				success("%s renders (%s)", args[0], outcome.Class)
				if u := s.ctx.User(); u != nil {
					info("as %s", describeUser(u))
				}
			case security.OutcomeLoginReset:
				info("Login page: stored session cleared")
			case security.OutcomeRedirect:
				warn("Redirected to %s", outcome.Target)
				if outcome.Err != nil {
					info("reason: %v", outcome.Err)
				}
			case security.OutcomeExpired:
				return errors.New("A052").Wrap(outcome.Err)
			case security.OutcomeStale:
				info("Navigation superseded")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host of the navigation (default hosts.main)")
	return cmd
}

func refreshCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new session token",
		Long: `Refresh the stored session. On failure the session is cleared and you
need to log in again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg, logger, localMetrics(), printNavigator(cmd.OutOrStdout()), terminalPresenter)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.ctx.Refresh(cmd.Context()); err != nil {
				return errors.New("A053").Wrap(err)
			}
			success("Session refreshed")
			return nil
		},
	}
}

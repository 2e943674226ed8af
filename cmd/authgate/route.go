package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/authgate/pkg/domainrouter"
	"github.com/vango-dev/authgate/pkg/metrics"
	"github.com/vango-dev/authgate/pkg/routes"
)

func routeCmd(load loader) *cobra.Command {
	var (
		host      string
		userAgent string
		width     int
	)

	cmd := &cobra.Command{
		Use:   "route <path>",
		Short: "Show the routing decision for a request",
		Long: `Show how the edge server would route a request.

Examples:
  authgate route /auth/dashboards --host example.com
  authgate route /pricing --host example.com --user-agent "iPhone" --width 390`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			router, err := newRouter(cfg, metrics.New(metrics.WithRegistry(prometheus.NewRegistry())), logger)
			if err != nil {
				return err
			}
			if host == "" {
				host = cfg.Hosts.Main
			}

			path, query, fragment := routes.SplitTarget(args[0])
			req := domainrouter.Request{
				Host:          host,
				Path:          path,
				Query:         query,
				Fragment:      fragment,
				UserAgent:     userAgent,
				ViewportWidth: width,
			}
			table, err := cfg.RouteTable()
			if err != nil {
				return err
			}
			class, pattern := table.Match(path)
			decision := router.Decide(req)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "host:     %s (%s)\n", host, cfg.Hosts.Classify(host))
			fmt.Fprintf(out, "class:    %s", class)
			if pattern != "" {
				fmt.Fprintf(out, " (%s)", pattern)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "mobile:   %t\n", router.IsMobile(userAgent, width))
			fmt.Fprintf(out, "rule:     %s\n", decision.Rule)
			if decision.Redirect() {
				fmt.Fprintf(out, "redirect: %s\n", decision.Location)
			} else {
				fmt.Fprintln(out, "redirect: none")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "request host (default hosts.main)")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "request User-Agent")
	cmd.Flags().IntVar(&width, "width", 0, "viewport width in CSS pixels (0 = unknown)")
	return cmd
}

// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hamed0406/webping/internal/config"
)

func NewRootCommand() *cobra.Command {
	cfg := config.FromEnv()

	cmd := &cobra.Command{
		Use:           "preflight",
		Short:         "Check the API configuration before starting it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return check(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
		},
	}
	cfg.AddFlags(cmd)
	return cmd
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✖", err)
		os.Exit(1)
	}
}

func check(stdout, stderr io.Writer, cfg config.Config) error {
	warn := func(msg string) { fmt.Fprintln(stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(stdout, "✔", msg) }

	if err := cfg.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(stderr, "✖", e)
		}
		return errors.Errorf("%d configuration problem(s)", len(multierr.Errors(err)))
	}
	ok("API_ADDR=" + cfg.Addr)
	ok(fmt.Sprintf("probe timeout %s, default interval %ds", cfg.ProbeTimeout, cfg.DefaultInterval))

	inputs := config.DefaultSites()
	source := "built-in sites"
	if cfg.SitesFile != "" {
		var err error
		if inputs, err = config.ReadSites(cfg.SitesFile); err != nil {
			return errors.Wrapf(err, "failed to read SITES_FILE")
		}
		source = cfg.SitesFile
	}
	sites, err := config.SeedSites(inputs, cfg.DefaultInterval)
	if err != nil {
		return errors.Wrapf(err, "invalid site in %s", source)
	}
	ok(fmt.Sprintf("%d site(s) from %s", len(sites), source))

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; any origin may call the API and open the stream.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}
	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty; alerts only go to the log.")
	} else {
		ok("Slack alerts enabled")
	}
	if cfg.RateLimitRPM == 0 {
		warn("RATE_LIMIT_RPM=0; API rate limiting disabled.")
	}
	if !cfg.Autostart {
		warn("AUTOSTART=false; periodic pings wait for POST /api/ping/start.")
	}

	ok("preflight passed")
	return nil
}

// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flavienbert/digitalocean/buildvars"
	"github.com/flavienbert/digitalocean/internal/api"
	"github.com/flavienbert/digitalocean/internal/config"
	"github.com/flavienbert/digitalocean/internal/logging"
	"github.com/flavienbert/digitalocean/internal/metrics"
	"github.com/flavienbert/digitalocean/internal/waiter"
)

// errNoToken is returned by commands that talk to the API when no token is
// configured.
var errNoToken = errors.New("no API token configured (set api.token, DOKEYS_API_TOKEN or DIGITALOCEAN_TOKEN)")

// app holds what the persistent pre-run resolves for every subcommand.
type app struct {
	cfgFile string
	verbose bool

	cfg     config.Config
	metrics *metrics.Metrics
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig[config.Config](cmd, config.Defaults(), &a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	a.cfg = cfg

	logging.SetLevel(cfg.Log.Level)
	if a.verbose {
		logging.SetDebug(true)
	}
	logging.Debugf("api url: %s, poll interval: %s", cfg.API.URL, cfg.Poll.Interval)
	return nil
}

// client builds the HTTP API client from the resolved configuration.
func (a *app) client() (*api.HTTPClient, error) {
	if a.cfg.API.Token == "" {
		return nil, errNoToken
	}
	return api.NewHTTPClient(a.cfg.API.URL, a.cfg.API.Token,
		api.WithTimeout(a.cfg.API.Timeout),
		api.WithPageSize(a.cfg.API.PageSize),
		api.WithUserAgent(buildvars.UserAgent()),
		api.WithMetrics(a.metrics),
	)
}

func (a *app) waiter(c waiter.Lister) *waiter.Waiter {
	return waiter.New(c, a.cfg.Poll.Interval, waiter.WithMetrics(a.metrics), waiter.WithLogger(logging.L))
}

// scenarioTimeout returns the configured bound for a single wait or scenario.
func (a *app) scenarioTimeout() time.Duration {
	if a.cfg.Scenario.Timeout > 0 {
		return a.cfg.Scenario.Timeout
	}
	return 2 * time.Minute
}

// NewRootCmd builds the dokeys command tree. Each call returns an
// independent tree, so tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	a := &app{metrics: metrics.New()}

	cmd := &cobra.Command{
		Use:   "dokeys",
		Short: "Manage DigitalOcean SSH keys and verify they converge",
		Long: `dokeys creates, renames, lists and deletes the SSH keys of a DigitalOcean
account, waiting for every change to show up in the eventually consistent
key listing. The scenario command runs the full lifecycle end to end.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/dokeys/dokeys.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.String("api-url", "", "API base URL")
	pf.String("api-token", "", "API bearer token")
	pf.Duration("api-timeout", 0, "per-request timeout")
	pf.Int("api-page-size", 0, "keys requested per listing page (1-200)")
	pf.Duration("poll-interval", 0, "delay between two listings while waiting")
	pf.Duration("scenario-timeout", 0, "bound on a single wait or scenario")
	pf.String("scenario-prefix", "", "name prefix of the keys scenarios create")
	pf.Int("scenario-rsa-bits", 0, "size of the RSA keys scenarios generate")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newKeyCmd(a),
		newScenarioCmd(a),
		newCleanupCmd(a),
		newFakeServerCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI entrypoint. The main package calls this function and
// handles process exit.
func Execute() error {
	return NewRootCmd().Execute()
}

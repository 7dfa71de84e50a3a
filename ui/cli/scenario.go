// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	gen "github.com/flavienbert/digitalocean/internal/crypto/ssh"
	"github.com/flavienbert/digitalocean/internal/logging"
	"github.com/flavienbert/digitalocean/internal/model"
	"github.com/flavienbert/digitalocean/internal/scenario"
)

type scenarioOptions struct {
	count       int
	renameBy    string
	fixedPause  time.Duration
	keyType     string
	fixedPrefix bool
	metricsAddr string
}

func (o scenarioOptions) generator(rsaBits int) (gen.Generator, error) {
	switch o.keyType {
	case "", "rsa":
		return gen.RSAGenerator{Bits: rsaBits}, nil
	case "ed25519":
		return gen.Ed25519Generator{}, nil
	default:
		return nil, fmt.Errorf("unknown key type %q (want rsa or ed25519)", o.keyType)
	}
}

// scenarios builds the set to run: the default trio, or count numbered
// polling scenarios, with the rename mode forced when requested.
func (o scenarioOptions) scenarios(prefix string, pause time.Duration) ([]scenario.Scenario, error) {
	var set []scenario.Scenario
	if o.count > 0 {
		set = scenario.NumberedScenarios(prefix, o.count)
	} else {
		set = scenario.DefaultScenarios(prefix, pause)
	}

	switch o.renameBy {
	case "":
	case "id":
		for i := range set {
			set[i].RenameBy = scenario.ByID
		}
	case "fingerprint":
		for i := range set {
			set[i].RenameBy = scenario.ByFingerprint
		}
	default:
		return nil, fmt.Errorf("unknown rename mode %q (want id or fingerprint)", o.renameBy)
	}
	return set, nil
}

func newScenarioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run key lifecycle scenarios against the API",
	}
	cmd.AddCommand(newScenarioRunCmd(a))
	return cmd
}

func newScenarioRunCmd(a *app) *cobra.Command {
	var o scenarioOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create, rename and delete test keys, waiting for each change to converge",
		Long: `Run lifecycle scenarios concurrently. Each scenario creates a freshly
generated key, waits for it to be listed, renames it, waits for the new name,
deletes it and waits for it to disappear. Keys left behind by the run are
removed afterwards whatever the outcome.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			keys, err := o.generator(a.cfg.Scenario.RSABits)
			if err != nil {
				return err
			}

			prefix := a.cfg.Scenario.Prefix
			if !o.fixedPrefix {
				prefix = scenario.NewRunPrefix(prefix)
			}
			pause := o.fixedPause
			if pause <= 0 {
				pause = 10 * a.cfg.Poll.Interval
			}
			set, err := o.scenarios(prefix, pause)
			if err != nil {
				return err
			}

			if o.metricsAddr != "" {
				stop, err := a.serveMetrics(o.metricsAddr)
				if err != nil {
					return err
				}
				defer stop()
			}

			runner := &scenario.Runner{
				Client:  c,
				Waiter:  a.waiter(c),
				Keys:    keys,
				Timeout: a.scenarioTimeout(),
				Log:     logging.L,
			}
			logging.Infof("running %d scenario(s) with prefix %s", len(set), prefix)
			report := runner.RunSuite(cmd.Context(), prefix, set, a.scenarioTimeout())

			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderReport(report, newReportStyles(isTerminal(out))))

			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d scenario(s) failed", len(failed), len(report.Results))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.count, "count", 0, "run this many numbered scenarios instead of the default set")
	f.StringVar(&o.renameBy, "rename-by", "", "force the rename mode: id or fingerprint")
	f.DurationVar(&o.fixedPause, "fixed-pause", 0, "pause used instead of polling for deletion (default 10x poll interval)")
	f.StringVar(&o.keyType, "key-type", "rsa", "generated key type: rsa or ed25519")
	f.BoolVar(&o.fixedPrefix, "fixed-prefix", false, "use scenario.prefix as is, without a random run tag")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	return cmd
}

// serveMetrics exposes the app metrics on addr until the returned function
// is called.
func (a *app) serveMetrics(addr string) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := a.metrics.Register(reg); err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warnf("metrics server: %v", err)
		}
	}()
	logging.Infof("serving metrics on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func newCleanupCmd(a *app) *cobra.Command {
	var prefix string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every key whose name starts with a prefix",
		Long: `Delete the keys left behind by interrupted scenario runs. Only keys whose
name starts with the prefix (default scenario.prefix) are touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prefix == "" {
				prefix = a.cfg.Scenario.Prefix
			}
			if prefix == "" {
				return errors.New("refusing to clean up with an empty prefix")
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				keys, err := c.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list keys: %w", err)
				}
				return writeKeys(out, "table", model.WithNamePrefix(keys, prefix))
			}

			report := scenario.Teardown(cmd.Context(), c, prefix, nil, logging.L)
			fmt.Fprint(out, renderTeardown(report, newReportStyles(isTerminal(out))))
			if report.ListErr != nil {
				return fmt.Errorf("failed to list keys: %w", report.ListErr)
			}
			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d key(s) could not be deleted", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "name prefix of the keys to delete (default scenario.prefix)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list the keys that would be deleted")
	return cmd
}

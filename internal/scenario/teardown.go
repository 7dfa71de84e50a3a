// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package scenario

import (
	"context"
	"errors"

	clog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/flavienbert/digitalocean/internal/api"
	"github.com/flavienbert/digitalocean/internal/logging"
	"github.com/flavienbert/digitalocean/internal/model"
)

// Cleanup is the outcome of deleting one leftover key.
type Cleanup struct {
	Key model.Key
	Err error
}

// Failed reports whether the key may still exist. A key that was already
// gone does not count as a failure.
func (c Cleanup) Failed() bool {
	return c.Err != nil && !errors.Is(c.Err, api.ErrNotFound)
}

// TeardownReport collects everything a teardown attempted.
type TeardownReport struct {
	// ListErr is set when the listing itself failed; Cleanups then only
	// holds the explicitly passed keys.
	ListErr  error
	Cleanups []Cleanup
}

// Failed returns the cleanups that left a key behind.
func (t TeardownReport) Failed() []Cleanup {
	var out []Cleanup
	for _, c := range t.Cleanups {
		if c.Failed() {
			out = append(out, c)
		}
	}
	return out
}

// Teardown deletes every listed key whose name starts with prefix, plus
// extra, concurrently. Failures are logged and reported, never returned:
// one stuck key must not keep the others around.
func Teardown(ctx context.Context, c api.Client, prefix string, extra []model.Key, logger *clog.Logger) TeardownReport {
	if logger == nil {
		logger = logging.L
	}
	var report TeardownReport

	targets := map[model.KeyID]model.Key{}
	keys, err := c.List(ctx)
	if err != nil {
		report.ListErr = err
		logger.Warn("teardown listing failed, deleting tracked keys only", "err", err)
	}
	for _, k := range model.WithNamePrefix(keys, prefix) {
		targets[k.ID] = k
	}
	for _, k := range extra {
		if _, ok := targets[k.ID]; !ok {
			targets[k.ID] = k
		}
	}

	report.Cleanups = make([]Cleanup, 0, len(targets))
	for _, k := range targets {
		report.Cleanups = append(report.Cleanups, Cleanup{Key: k})
	}

	var g errgroup.Group
	for i := range report.Cleanups {
		i := i
		g.Go(func() error {
			cl := &report.Cleanups[i]
			cl.Err = c.DeleteByID(ctx, cl.Key.ID)
			switch {
			case cl.Err == nil:
				logger.Debug("teardown deleted key", "id", cl.Key.ID, "name", cl.Key.Name)
			case !cl.Failed():
				logger.Debug("teardown key already gone", "id", cl.Key.ID, "name", cl.Key.Name)
			default:
				logger.Warn("teardown could not delete key", "id", cl.Key.ID, "name", cl.Key.Name, "err", cl.Err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// Teardown removes the runner's leftovers and every key named with prefix.
func (r *Runner) Teardown(ctx context.Context, prefix string) TeardownReport {
	return Teardown(ctx, r.Client, prefix, r.Leftovers(), r.Log)
}

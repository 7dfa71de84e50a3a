// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// NewRunPrefix returns base followed by a short random tag, so that keys of
// concurrent runs never share a prefix.
func NewRunPrefix(base string) string {
	tag := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return base + tag + "-"
}

// DefaultScenarios returns the standard set: rename by id, rename by
// fingerprint, and a fixed pause instead of polling for the deletion.
func DefaultScenarios(prefix string, pause time.Duration) []Scenario {
	return []Scenario{
		{Name: prefix + "42", RenameBy: ByID, Deletion: PollDeletion, StabilityChecks: 2},
		{Name: prefix + "43", RenameBy: ByFingerprint, Deletion: PollDeletion, StabilityChecks: 2},
		{Name: prefix + "44", RenameBy: ByID, Deletion: FixedPause, Pause: pause},
	}
}

// NumberedScenarios returns n polling scenarios alternating the rename mode.
func NumberedScenarios(prefix string, n int) []Scenario {
	out := make([]Scenario, 0, n)
	for i := 0; i < n; i++ {
		mode := ByID
		if i%2 == 1 {
			mode = ByFingerprint
		}
		out = append(out, Scenario{Name: fmt.Sprintf("%s%d", prefix, 42+i), RenameBy: mode, StabilityChecks: 1})
	}
	return out
}

// RunAll runs every scenario concurrently and returns their results in
// input order. A failing scenario does not cancel the others.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, len(scenarios))
	var g errgroup.Group
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = r.Run(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Report is the outcome of a whole suite.
type Report struct {
	Prefix   string
	Results  []Result
	Teardown TeardownReport
}

// Failed returns the results that did not pass.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// RunSuite runs scenarios, then always tears down under a context detached
// from ctx's cancellation and bounded by teardownTimeout.
func (r *Runner) RunSuite(ctx context.Context, prefix string, scenarios []Scenario, teardownTimeout time.Duration) Report {
	rep := Report{Prefix: prefix}
	rep.Results = r.RunAll(ctx, scenarios)

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	rep.Teardown = r.Teardown(tctx, prefix)
	return rep
}

// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

// Package scenario drives keys through their full lifecycle against the
// provider, waiting for the listing to catch up after every write.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/flavienbert/digitalocean/internal/api"
	gen "github.com/flavienbert/digitalocean/internal/crypto/ssh"
	"github.com/flavienbert/digitalocean/internal/logging"
	"github.com/flavienbert/digitalocean/internal/model"
	"github.com/flavienbert/digitalocean/internal/waiter"
)

// DefaultTimeout bounds one scenario when Runner.Timeout is zero.
const DefaultTimeout = 2 * time.Minute

// State is a lifecycle position of the scenario's key.
type State int

const (
	Absent State = iota
	Created
	VisibleInList
	Renamed
	RenameVisible
	Deleted
	DeletionVisible
)

var stateNames = [...]string{"absent", "created", "visible", "renamed", "rename-visible", "deleted", "deletion-visible"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// RenameMode selects how the key is addressed on rename.
type RenameMode int

const (
	ByID RenameMode = iota
	ByFingerprint
)

func (m RenameMode) String() string {
	if m == ByFingerprint {
		return "fingerprint"
	}
	return "id"
}

// DeletionMode selects how the scenario waits for a delete to show.
type DeletionMode int

const (
	// PollDeletion waits until the id is gone from the listing.
	PollDeletion DeletionMode = iota
	// FixedPause sleeps Scenario.Pause instead of polling.
	FixedPause
)

// Scenario describes one lifecycle run.
type Scenario struct {
	// Name is the key name used on creation.
	Name string
	// NewName is the rename target, Name+"Updated" when empty.
	NewName  string
	RenameBy RenameMode
	Deletion DeletionMode
	Pause    time.Duration
	// StabilityChecks is the number of extra listings after deletion that
	// must still not show the key.
	StabilityChecks int
}

func (sc Scenario) newName() string {
	if sc.NewName != "" {
		return sc.NewName
	}
	return sc.Name + "Updated"
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario Scenario
	State    State
	// Key is the last observed record of the scenario's key.
	Key     model.Key
	Err     error
	Elapsed time.Duration
}

func (r Result) OK() bool { return r.Err == nil }

// Runner executes scenarios. Every key a Runner creates is tracked until
// its deletion succeeds so Teardown can remove leftovers even when the
// listing has not caught up with them yet.
type Runner struct {
	Client api.Client
	Waiter *waiter.Waiter
	Keys   gen.Generator
	// Timeout bounds each scenario, DefaultTimeout when zero.
	Timeout time.Duration
	// Sleeper serves FixedPause deletions, waiter.TimerSleeper when nil.
	Sleeper waiter.Sleeper
	Log     *clog.Logger

	mu      sync.Mutex
	created map[model.KeyID]model.Key
}

// run carries the state of one scenario execution.
type run struct {
	r     *Runner
	sc    Scenario
	log   *clog.Logger
	state State
	key   model.Key
}

// fail wraps err for step. An error counts as a timeout only when the
// scenario's own context has ended; a request that timed out on its own
// while ctx is live is a transport failure.
func (x *run) fail(ctx context.Context, step string, err error) error {
	kind := Classify(err)
	if ctx.Err() != nil && kind != KindAssertion {
		kind = KindTimeout
	}
	x.log.Error("scenario step failed", "step", step, "state", x.state, "kind", kind, "err", err)
	return &StepError{Step: step, State: x.state, Kind: kind, Err: err}
}

func (x *run) advance(s State, k model.Key) {
	x.state = s
	x.key = k
	x.log.Debug("state reached", "state", s, "key", k.ID, "name", k.Name)
}

// Run executes sc under the runner's timeout and reports how far it got.
func (r *Runner) Run(ctx context.Context, sc Scenario) Result {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := r.Log
	if logger == nil {
		logger = logging.L
	}
	x := &run{r: r, sc: sc, log: logger.With("scenario", sc.Name)}

	start := time.Now()
	err := x.execute(ctx)
	res := Result{Scenario: sc, State: x.state, Key: x.key, Err: err, Elapsed: time.Since(start)}
	if err == nil {
		x.log.Info("scenario passed", "elapsed", res.Elapsed.Round(time.Millisecond))
	}
	return res
}

func (x *run) execute(ctx context.Context) error {
	r, sc := x.r, x.sc
	newName := sc.newName()

	// Absent -> Created
	pub, err := r.Keys.PublicKey()
	if err != nil {
		return x.fail(ctx, "generate-key", err)
	}
	k, err := r.Client.Create(ctx, sc.Name, pub)
	if err != nil {
		return x.fail(ctx, "create", err)
	}
	if k.ID == "" {
		return x.fail(ctx, "create", assertionf("created key lacks an id: %+v", k))
	}
	r.track(k)
	if k.Fingerprint == "" {
		return x.fail(ctx, "create", assertionf("created key lacks a fingerprint: %+v", k))
	}
	if k.Name != sc.Name || k.PublicKey != pub {
		return x.fail(ctx, "create", assertionf("created key does not echo its input: got name %q", k.Name))
	}
	x.advance(Created, k)

	// Created -> VisibleInList
	if _, err := r.Waiter.Until(ctx, waiter.Present(k)); err != nil {
		return x.fail(ctx, "await-visible", err)
	}
	keys, err := r.Client.List(ctx)
	if err != nil {
		return x.fail(ctx, "list-present", err)
	}
	if !model.ContainsExact(keys, k) {
		return x.fail(ctx, "list-present", assertionf("key %s vanished from the listing after becoming visible", k.ID))
	}
	x.advance(VisibleInList, k)

	// VisibleInList -> Renamed
	var renamed model.Key
	switch sc.RenameBy {
	case ByFingerprint:
		renamed, err = r.Client.RenameByFingerprint(ctx, k.Fingerprint, newName)
	default:
		renamed, err = r.Client.RenameByID(ctx, k.ID, newName)
	}
	if err != nil {
		return x.fail(ctx, "rename", err)
	}
	if !model.SameResource(k, renamed) {
		return x.fail(ctx, "rename", assertionf("rename changed identity: before %+v after %+v", k, renamed))
	}
	if renamed.Name != newName {
		return x.fail(ctx, "rename", assertionf("rename returned name %q, want %q", renamed.Name, newName))
	}
	x.advance(Renamed, renamed)

	// Renamed -> RenameVisible
	if _, err := r.Waiter.Until(ctx, waiter.RenameVisible(renamed)); err != nil {
		return x.fail(ctx, "await-rename", err)
	}
	keys, err = r.Client.List(ctx)
	if err != nil {
		return x.fail(ctx, "list-renamed", err)
	}
	if !model.ContainsExact(keys, renamed) {
		return x.fail(ctx, "list-renamed", assertionf("renamed key %s not listed as %q", renamed.ID, newName))
	}
	if old, ok := model.FindByName(keys, sc.Name); ok && model.SameResource(old, k) {
		return x.fail(ctx, "list-renamed", assertionf("key %s still listed under old name %q", k.ID, sc.Name))
	}
	if n := model.CountSameResource(keys, renamed); n != 1 {
		return x.fail(ctx, "list-renamed", assertionf("key %s listed %d times", k.ID, n))
	}
	x.advance(RenameVisible, renamed)

	// RenameVisible -> Deleted
	if err := r.Client.DeleteByID(ctx, renamed.ID); err != nil {
		return x.fail(ctx, "delete", err)
	}
	r.untrack(renamed.ID)
	x.advance(Deleted, renamed)

	// Deleted -> DeletionVisible
	switch sc.Deletion {
	case FixedPause:
		sleeper := r.Sleeper
		if sleeper == nil {
			sleeper = waiter.TimerSleeper
		}
		if err := sleeper.Sleep(ctx, sc.Pause); err != nil {
			return x.fail(ctx, "await-deletion", err)
		}
	default:
		if _, err := r.Waiter.Until(ctx, waiter.Absent(renamed.ID)); err != nil {
			return x.fail(ctx, "await-deletion", err)
		}
	}
	for i := 0; i <= sc.StabilityChecks; i++ {
		keys, err = r.Client.List(ctx)
		if err != nil {
			return x.fail(ctx, "list-absent", err)
		}
		if model.HasID(keys, renamed.ID) {
			return x.fail(ctx, "list-absent", assertionf("deleted key %s listed again (check %d)", renamed.ID, i))
		}
	}
	x.advance(DeletionVisible, renamed)

	// A second delete must be reported, not silently accepted.
	err = r.Client.DeleteByID(ctx, renamed.ID)
	switch {
	case err == nil:
		return x.fail(ctx, "double-delete", assertionf("second delete of %s succeeded", renamed.ID))
	case !errors.Is(err, api.ErrNotFound):
		return x.fail(ctx, "double-delete", err)
	}
	return nil
}

func (r *Runner) track(k model.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.created == nil {
		r.created = map[model.KeyID]model.Key{}
	}
	r.created[k.ID] = k
}

func (r *Runner) untrack(id model.KeyID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.created, id)
}

// Leftovers returns the keys this runner created and did not delete.
func (r *Runner) Leftovers() []model.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Key, 0, len(r.created))
	for _, k := range r.created {
		out = append(out, k)
	}
	return out
}

// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

// Package waiter polls the key listing until a condition over it holds.
//
// The provider acknowledges writes before its listing reflects them. A
// Waiter bridges that gap: it lists, evaluates a predicate, and sleeps a
// fixed interval between attempts. It has no attempt limit and no deadline
// of its own; the caller bounds it through the context.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	clog "github.com/charmbracelet/log"

	"github.com/flavienbert/digitalocean/internal/logging"
	"github.com/flavienbert/digitalocean/internal/metrics"
	"github.com/flavienbert/digitalocean/internal/model"
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("listing did not converge before the deadline")

// TimeoutError is returned when the context ends before the predicate holds.
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
	// LastSeen is the size of the last listing observed, -1 if none.
	LastSeen int
	Cause    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v after %d attempts in %s (last listing had %d keys): %v",
		ErrTimeout, e.Attempts, e.Elapsed.Round(time.Millisecond), e.LastSeen, e.Cause)
}

func (e *TimeoutError) Unwrap() []error {
	return []error{ErrTimeout, e.Cause}
}

// Lister is the read side of api.Client.
type Lister interface {
	List(ctx context.Context) ([]model.Key, error)
}

// ListFunc adapts a function to Lister.
type ListFunc func(ctx context.Context) ([]model.Key, error)

func (f ListFunc) List(ctx context.Context) ([]model.Key, error) { return f(ctx) }

// Sleeper suspends the caller for d or until ctx ends, whichever is first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper waits on a timer without blocking the context's cancellation.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// Predicate decides whether a listing reflects the expected state.
type Predicate func(keys []model.Key) bool

// Result describes a successful wait.
type Result struct {
	// Keys is the listing that satisfied the predicate.
	Keys     []model.Key
	Attempts int
	Elapsed  time.Duration
}

// Waiter polls a Lister at a fixed interval.
type Waiter struct {
	lister   Lister
	interval time.Duration
	sleeper  Sleeper
	metrics  *metrics.Metrics
	log      *clog.Logger
	now      func() time.Time
}

// Option configures a Waiter.
type Option func(*Waiter)

func WithSleeper(s Sleeper) Option {
	return func(w *Waiter) {
		w.sleeper = s
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Waiter) {
		w.metrics = m
	}
}

func WithLogger(l *clog.Logger) Option {
	return func(w *Waiter) {
		w.log = l
	}
}

// WithClock replaces time.Now for elapsed-time reporting.
func WithClock(now func() time.Time) Option {
	return func(w *Waiter) {
		w.now = now
	}
}

// New returns a Waiter that lists through l every interval.
func New(l Lister, interval time.Duration, opts ...Option) *Waiter {
	w := &Waiter{
		lister:   l,
		interval: interval,
		sleeper:  TimerSleeper,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logging.With("component", "waiter")
	}
	return w
}

// Interval returns the fixed delay between two list attempts.
func (w *Waiter) Interval() time.Duration { return w.interval }

// errPending is the retryable outcome of a listing that does not match yet.
var errPending = errors.New("listing has not converged yet")

// sleeperTimer is a backoff.Timer that waits through a Sleeper, so tests can
// drive the retry loop without real delays.
type sleeperTimer struct {
	ctx     context.Context
	sleeper Sleeper
	c       chan time.Time
	// err is the first sleep failure; the next attempt stops on it.
	err error
}

var _ backoff.Timer = (*sleeperTimer)(nil)

func (t *sleeperTimer) Start(d time.Duration) {
	if err := t.sleeper.Sleep(t.ctx, d); err != nil && t.err == nil {
		t.err = err
	}
	select {
	case t.c <- time.Time{}:
	default:
	}
}

func (t *sleeperTimer) Stop() {}

func (t *sleeperTimer) C() <-chan time.Time { return t.c }

// Until lists until pred holds and returns the satisfying listing.
//
// List errors are returned as they are, without retrying: only a listing
// that does not yet match is worth another attempt. When ctx ends first the
// error is a *TimeoutError, including the case where ctx interrupted a list
// call in flight.
func (w *Waiter) Until(ctx context.Context, pred Predicate) (Result, error) {
	start := w.now()
	timer := &sleeperTimer{ctx: ctx, sleeper: w.sleeper, c: make(chan time.Time, 1)}

	var (
		attempts int
		lastSeen = -1
		matched  []model.Key
		listErr  error
	)
	attempt := func() error {
		if timer.err != nil {
			return backoff.Permanent(timer.err)
		}
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		keys, err := w.lister.List(ctx)
		if err != nil {
			listErr = err
			return backoff.Permanent(err)
		}
		lastSeen = len(keys)
		if !pred(keys) {
			return errPending
		}
		matched = keys
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(w.interval), ctx)
	err := backoff.RetryNotifyWithTimer(attempt, b, nil, timer)
	elapsed := w.now().Sub(start)

	switch {
	case err == nil:
		w.metrics.ObserveWait(attempts, elapsed.Seconds(), "ok")
		if attempts > 1 {
			w.log.Debug("listing converged", "attempts", attempts, "elapsed", elapsed.Round(time.Millisecond))
		}
		return Result{Keys: matched, Attempts: attempts, Elapsed: elapsed}, nil
	case listErr != nil && ctx.Err() == nil:
		w.metrics.ObserveWait(attempts, elapsed.Seconds(), "error")
		return Result{Attempts: attempts, Elapsed: elapsed}, fmt.Errorf("list attempt %d: %w", attempts, listErr)
	}

	cause := context.Cause(ctx)
	if cause == nil {
		cause = timer.err
	}
	w.metrics.ObserveWait(attempts, elapsed.Seconds(), "timeout")
	return Result{Attempts: attempts, Elapsed: elapsed}, &TimeoutError{
		Attempts: attempts,
		Elapsed:  elapsed,
		LastSeen: lastSeen,
		Cause:    cause,
	}
}

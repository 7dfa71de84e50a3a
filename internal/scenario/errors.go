// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/flavienbert/digitalocean/internal/api"
	"github.com/flavienbert/digitalocean/internal/waiter"
)

// ErrAssertion marks a listing or response that contradicts what the
// lifecycle expects, as opposed to an API failure or a slow listing.
var ErrAssertion = errors.New("assertion failed")

func assertionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAssertion, fmt.Sprintf(format, args...))
}

// ErrorKind classifies why a step failed.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	// KindTimeout means the scenario deadline passed, usually while waiting
	// for the listing to converge.
	KindTimeout ErrorKind = "timeout"
	// KindAssertion means the provider answered but with the wrong state.
	KindAssertion ErrorKind = "assertion"
	KindUnknown   ErrorKind = "unknown"
)

// Classify returns the kind of err from err alone. Provider errors keep
// their own kind even when they wrap a deadline, since a per-request timeout
// is a transport failure; only waiter timeouts and bare context errors read
// as timeouts. Callers that know the scenario context was cut short should
// report KindTimeout themselves.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, waiter.ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrAssertion):
		return KindAssertion
	}
	switch api.Kind(err) {
	case "transport":
		return KindTransport
	case "validation":
		return KindValidation
	case "conflict":
		return KindConflict
	case "not_found":
		return KindNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindUnknown
}

// StepError reports the lifecycle step that failed.
type StepError struct {
	Step  string
	State State // last state reached before the failure
	Kind  ErrorKind
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed after reaching %s [%s]: %v", e.Step, e.State, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every error returned by a Client matches exactly one of
// these with errors.Is.
var (
	// ErrTransport covers network failures, authentication and rate limit
	// rejections, server errors and undecodable responses.
	ErrTransport = errors.New("transport error")
	// ErrValidation means the request itself was malformed.
	ErrValidation = errors.New("validation error")
	// ErrConflict means a name or key collides with an existing key.
	ErrConflict = errors.New("conflict")
	// ErrNotFound means the id or fingerprint is unknown to the provider.
	ErrNotFound = errors.New("not found")
)

// Error is a failed key API call.
type Error struct {
	Op        string // list, create, rename, delete, get
	Kind      error  // one of the Err* kinds above
	Status    int    // HTTP status, 0 when no response was received
	ID        string // provider error id, e.g. "not_found"
	Message   string
	RequestID string
	Err       error // underlying cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d", e.Status)
		if e.ID != "" {
			fmt.Fprintf(&b, " %s", e.ID)
		}
		b.WriteString(")")
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind names the error kind of err: "transport", "validation", "conflict",
// "not_found", or "unknown" for errors that did not come from a Client.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

// classify maps a provider error response onto a kind. DigitalOcean reports
// duplicates as 422 with an "already in use" or "already been taken" message,
// so the message decides between conflict and validation.
func classify(status int, id, message string) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict || id == "conflict":
		return ErrConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if isConflictMessage(message) {
			return ErrConflict
		}
		return ErrValidation
	default:
		return ErrTransport
	}
}

func isConflictMessage(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "already") || strings.Contains(m, "in use") || strings.Contains(m, "taken")
}

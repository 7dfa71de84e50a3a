// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package api

import (
	"context"

	"github.com/flavienbert/digitalocean/internal/model"
)

// Client is the key management surface of the provider API.
//
// Reads go through an eventually consistent path: a key returned by Create
// may be missing from List for a while, and a deleted key may linger.
// Implementations never retry; every failure is reported as an *Error.
type Client interface {
	// List returns every key currently visible to the read path.
	List(ctx context.Context) ([]model.Key, error)

	// Get fetches a single key by id.
	Get(ctx context.Context, id model.KeyID) (model.Key, error)

	// Create registers publicKey under name. ErrConflict if the name or the
	// key is already registered, ErrValidation if publicKey is malformed.
	Create(ctx context.Context, name, publicKey string) (model.Key, error)

	RenameByID(ctx context.Context, id model.KeyID, newName string) (model.Key, error)

	RenameByFingerprint(ctx context.Context, fingerprint, newName string) (model.Key, error)

	// DeleteByID removes a key. Deleting an id that is already gone fails
	// with ErrNotFound rather than succeeding silently.
	DeleteByID(ctx context.Context, id model.KeyID) error

	DeleteByFingerprint(ctx context.Context, fingerprint string) error
}

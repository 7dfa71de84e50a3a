// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package api

import (
	"context"

	"github.com/flavienbert/digitalocean/internal/model"
)

// MockClient dispatches each call to its override when set, otherwise to
// BaseClient. Calling a method with neither panics.
type MockClient struct {
	BaseClient Client
	Overwrites MockClientOverwrites
}

type MockClientOverwrites struct {
	List                func(ctx context.Context) ([]model.Key, error)
	Get                 func(ctx context.Context, id model.KeyID) (model.Key, error)
	Create              func(ctx context.Context, name, publicKey string) (model.Key, error)
	RenameByID          func(ctx context.Context, id model.KeyID, newName string) (model.Key, error)
	RenameByFingerprint func(ctx context.Context, fingerprint, newName string) (model.Key, error)
	DeleteByID          func(ctx context.Context, id model.KeyID) error
	DeleteByFingerprint func(ctx context.Context, fingerprint string) error
}

var _ Client = (*MockClient)(nil)

// client := NewMockClient(nil, MockClientOverwrites{ /* overwrite Client methods here... */ })
func NewMockClient(base Client, overwrites MockClientOverwrites) *MockClient {
	return &MockClient{
		BaseClient: base,
		Overwrites: overwrites,
	}
}

func (m *MockClient) List(ctx context.Context) ([]model.Key, error) {
	if m.Overwrites.List != nil {
		return m.Overwrites.List(ctx)
	} else if m.BaseClient != nil {
		return m.BaseClient.List(ctx)
	}
	panic("MockClient.List not implemented")
}

func (m *MockClient) Get(ctx context.Context, id model.KeyID) (model.Key, error) {
	if m.Overwrites.Get != nil {
		return m.Overwrites.Get(ctx, id)
	} else if m.BaseClient != nil {
		return m.BaseClient.Get(ctx, id)
	}
	panic("MockClient.Get not implemented")
}

func (m *MockClient) Create(ctx context.Context, name, publicKey string) (model.Key, error) {
	if m.Overwrites.Create != nil {
		return m.Overwrites.Create(ctx, name, publicKey)
	} else if m.BaseClient != nil {
		return m.BaseClient.Create(ctx, name, publicKey)
	}
	panic("MockClient.Create not implemented")
}

func (m *MockClient) RenameByID(ctx context.Context, id model.KeyID, newName string) (model.Key, error) {
	if m.Overwrites.RenameByID != nil {
		return m.Overwrites.RenameByID(ctx, id, newName)
	} else if m.BaseClient != nil {
		return m.BaseClient.RenameByID(ctx, id, newName)
	}
	panic("MockClient.RenameByID not implemented")
}

func (m *MockClient) RenameByFingerprint(ctx context.Context, fingerprint, newName string) (model.Key, error) {
	if m.Overwrites.RenameByFingerprint != nil {
		return m.Overwrites.RenameByFingerprint(ctx, fingerprint, newName)
	} else if m.BaseClient != nil {
		return m.BaseClient.RenameByFingerprint(ctx, fingerprint, newName)
	}
	panic("MockClient.RenameByFingerprint not implemented")
}

func (m *MockClient) DeleteByID(ctx context.Context, id model.KeyID) error {
	if m.Overwrites.DeleteByID != nil {
		return m.Overwrites.DeleteByID(ctx, id)
	} else if m.BaseClient != nil {
		return m.BaseClient.DeleteByID(ctx, id)
	}
	panic("MockClient.DeleteByID not implemented")
}

func (m *MockClient) DeleteByFingerprint(ctx context.Context, fingerprint string) error {
	if m.Overwrites.DeleteByFingerprint != nil {
		return m.Overwrites.DeleteByFingerprint(ctx, fingerprint)
	} else if m.BaseClient != nil {
		return m.BaseClient.DeleteByFingerprint(ctx, fingerprint)
	}
	panic("MockClient.DeleteByFingerprint not implemented")
}

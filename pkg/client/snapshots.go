// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/url"
)

// SnapshotClient lists, saves and restores copies of the trigger tree.
type SnapshotClient struct {
	c *Client
}

// List returns the profile's snapshots, newest first.
func (s *SnapshotClient) List(ctx context.Context) ([]Snapshot, error) {
	data, err := s.c.get(ctx, "/snapshots")
	return decode[[]Snapshot](data, err)
}

// Save stores a snapshot of the live tree.
func (s *SnapshotClient) Save(ctx context.Context) (*Snapshot, error) {
	data, err := s.c.post(ctx, "/snapshots", nil)
	snap, err := decode[Snapshot](data, err)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Restore replaces the live tree with snapshot id.
func (s *SnapshotClient) Restore(ctx context.Context, id string) (*Snapshot, error) {
	data, err := s.c.post(ctx, "/snapshots/"+url.PathEscape(id)+"/restore", nil)
	snap, err := decode[Snapshot](data, err)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

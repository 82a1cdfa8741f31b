// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
)

// TriggerClient manages the live trigger tree.
//
// Access this client through [Client.Triggers]:
//
//	tree, err := client.Triggers.List(ctx)
type TriggerClient struct {
	c *Client
}

// List returns the root triggers with their children.
func (t *TriggerClient) List(ctx context.Context) ([]Trigger, error) {
	data, err := t.c.get(ctx, "/triggers")
	return decode[[]Trigger](data, err)
}

// Get returns a trigger by id.
func (t *TriggerClient) Get(ctx context.Context, id int64) (*Trigger, error) {
	data, err := t.c.get(ctx, fmt.Sprintf("/triggers/%d", id))
	tr, err := decode[Trigger](data, err)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// Delete removes a trigger and its children.
func (t *TriggerClient) Delete(ctx context.Context, id int64) error {
	_, err := t.c.delete(ctx, fmt.Sprintf("/triggers/%d", id))
	return err
}

// Import adds root triggers built from defs and compiles the tree.
func (t *TriggerClient) Import(ctx context.Context, defs []Definition) (*ImportResult, error) {
	data, err := t.c.post(ctx, "/triggers", defs)
	res, err := decode[ImportResult](data, err)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Enable activates every trigger named name.
func (t *TriggerClient) Enable(ctx context.Context, name string) (*ByNameResult, error) {
	return t.byName(ctx, "enable", name)
}

// Disable deactivates every trigger named name.
func (t *TriggerClient) Disable(ctx context.Context, name string) (*ByNameResult, error) {
	return t.byName(ctx, "disable", name)
}

// Kill removes every trigger named name.
func (t *TriggerClient) Kill(ctx context.Context, name string) (*ByNameResult, error) {
	return t.byName(ctx, "kill", name)
}

func (t *TriggerClient) byName(ctx context.Context, op, name string) (*ByNameResult, error) {
	data, err := t.c.post(ctx, "/triggers/"+op, map[string]string{"name": name})
	res, err := decode[ByNameResult](data, err)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Compile compiles every pending trigger and returns the ids that failed.
func (t *TriggerClient) Compile(ctx context.Context) ([]int64, error) {
	data, err := t.c.post(ctx, "/triggers/compile", nil)
	res, err := decode[struct {
		Failed []int64 `json:"failed"`
	}](data, err)
	return res.Failed, err
}

// Temp creates a temporary trigger and returns its id.
func (t *TriggerClient) Temp(ctx context.Context, req TempTrigger) (int64, error) {
	data, err := t.c.post(ctx, "/triggers/temp", req)
	res, err := decode[struct {
		ID int64 `json:"id"`
	}](data, err)
	return res.ID, err
}

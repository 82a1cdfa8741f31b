// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// SessionClient reads session state and drives the session.
type SessionClient struct {
	c *Client
}

// Stats returns the session's counters.
func (s *SessionClient) Stats(ctx context.Context) (*SessionStats, error) {
	data, err := s.c.get(ctx, "/session")
	st, err := decode[SessionStats](data, err)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Feed queues lines for matching as if the session had received them.
// Lines are processed in order after anything already queued.
func (s *SessionClient) Feed(ctx context.Context, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := s.c.post(ctx, "/lines", map[string]interface{}{"lines": lines})
	return err
}

// Send writes command to the remote session.
func (s *SessionClient) Send(ctx context.Context, command string) error {
	_, err := s.c.post(ctx, "/send", map[string]string{"command": command})
	return err
}

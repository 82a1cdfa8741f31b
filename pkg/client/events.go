// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// EventClient reads the server's event log.
//
// Access this client through [Client.Events]:
//
//	events, err := client.Events.List(ctx, &client.ListOptions{Limit: 50})
type EventClient struct {
	c *Client
}

// ListOptions configures event listing.
type ListOptions struct {
	// Limit is the maximum number of events to return.
	Limit int

	// Types filters to these event types. Patterns such as "trigger.*"
	// are allowed.
	Types []string

	// Session filters to events from this session.
	Session string

	// Since filters to events after this time.
	Since time.Time

	// Until filters to events before this time.
	Until time.Time
}

// List returns recorded events, oldest first. With a Limit only the newest
// Limit events are returned.
func (e *EventClient) List(ctx context.Context, opts *ListOptions) ([]Event, error) {
	path := "/events"

	if opts != nil {
		params := url.Values{}
		if opts.Limit > 0 {
			params.Set("limit", fmt.Sprintf("%d", opts.Limit))
		}
		for _, t := range opts.Types {
			params.Add("type", t)
		}
		if opts.Session != "" {
			params.Set("session", opts.Session)
		}
		if !opts.Since.IsZero() {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if !opts.Until.IsZero() {
			params.Set("until", opts.Until.Format(time.RFC3339))
		}
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
	}

	data, err := e.c.get(ctx, path)
	return decode[[]Event](data, err)
}

// Stream subscribes to events matching pattern ("" means all) and delivers
// them on the returned channel until ctx is cancelled or the connection
// drops. The channel is closed when the stream ends.
func (e *EventClient) Stream(ctx context.Context, pattern string) (<-chan Event, error) {
	u, err := url.Parse(e.c.baseURL + apiPath + "/events/ws")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	if pattern != "" {
		u.RawQuery = url.Values{"pattern": {pattern}}.Encode()
	}

	header := http.Header{}
	header.Set(VersionHeader, e.c.version)

	dialer := websocket.Dialer{HandshakeTimeout: e.c.httpClient.Timeout}
	if tr, ok := e.c.httpClient.Transport.(*http.Transport); ok {
		dialer.TLSClientConfig = tr.TLSClientConfig
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if _, perr := e.c.parseResponse(resp); perr != nil {
				return nil, perr
			}
		}
		return nil, fmt.Errorf("stream failed: %w", err)
	}

	ch := make(chan Event, 16)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

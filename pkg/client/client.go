// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the lattice control API.
//
// A running lattice instance exposes its trigger tree, session and snapshot
// store over HTTP. This package gives typed access to those endpoints:
//
//	c := client.New("http://localhost:4770")
//
//	// Disable every trigger named "autoloot"
//	res, err := c.Triggers.Disable(ctx, "autoloot")
//
//	// Inject a line as if the session had received it
//	err = c.Session.Feed(ctx, "You are hungry.")
//
//	// Watch firings as they happen
//	events, err := c.Events.Stream(ctx, "trigger.fired")
//
// # API Versioning
//
// The client sends [LatestVersion] in the Lattice-Version header unless
// pinned with [WithVersion].
//
// # Error Handling
//
// API errors are returned as *APIError values carrying the server's error
// code, e.g. NOT_FOUND or UNAVAILABLE:
//
//	_, err := c.Triggers.Get(ctx, 42)
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == client.CodeNotFound {
//	    ...
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a lattice API client.
//
// A Client provides access to the API through resource-specific
// sub-clients. Use [New] to create a Client instance.
//
// The Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client

	// Triggers manages the live trigger tree.
	Triggers *TriggerClient

	// Session reads session state and injects lines and commands.
	Session *SessionClient

	// Events reads and streams the event log.
	Events *EventClient

	// Snapshots lists, saves and restores copies of the tree.
	Snapshots *SnapshotClient
}

// Option configures a [Client]. Options are passed to [New] to customize
// client behavior.
type Option func(*Client)

// New creates a new API client with the given base URL and options.
//
// The baseURL is the root URL of the lattice server (e.g., "http://localhost:4770").
// Any trailing slash is removed.
//
// By default, the client uses:
//   - The latest API version ([LatestVersion])
//   - A 30-second HTTP timeout
//
// Use options like [WithVersion], [WithTimeout], or [WithHTTPClient] to customize.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Triggers = &TriggerClient{c: c}
	c.Session = &SessionClient{c: c}
	c.Events = &EventClient{c: c}
	c.Snapshots = &SnapshotClient{c: c}

	return c
}

// WithVersion sets the API version to use for all requests.
//
// Versions are dates (e.g., "2026-10-18"). See [LatestVersion].
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
//
// Use it for custom TLS settings, e.g. a server started with tls_cert.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests.
//
// The default timeout is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiPath prefixes every endpoint.
const apiPath = "/api/v1"

// Error codes returned by the server.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnavailable  = "UNAVAILABLE"
	CodeSessionError = "SESSION_ERROR"
	CodeTriggerError = "TRIGGER_ERROR"
	CodeStoreError   = "STORE_ERROR"
)

// APIError is an error reported by the server.
type APIError struct {
	StatusCode int                    `json:"-"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, path, nil)
}

// post sends in as the JSON body; a nil in sends no body.
func (c *Client) post(ctx context.Context, path string, in interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, path, in)
}

func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodDelete, path, nil)
}

// call sends one request under apiPath and returns the envelope's data.
func (c *Client) call(ctx context.Context, method, path string, in interface{}) (json.RawMessage, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPath+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(VersionHeader, c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	return c.parseResponse(resp)
}

// parseResponse unwraps the {"data": ..., "error": ...} envelope. A body
// that is not an envelope is returned as is on success.
func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *APIError       `json:"error"`
	}
	failed := resp.StatusCode >= http.StatusBadRequest
	switch {
	case json.Unmarshal(raw, &env) != nil:
		if failed {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
		}
		return raw, nil
	case env.Error != nil:
		env.Error.StatusCode = resp.StatusCode
		return nil, env.Error
	case failed:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return env.Data, nil
}

// Health reports whether the server is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	h, err := decode[Health](c.get(ctx, "/health"))
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// decode unmarshals a response into T, passing err through.
func decode[T any](data json.RawMessage, err error) (T, error) {
	var v T
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package version implements date-based versioning of the Lattice API.
//
// Clients may pin a version with the Lattice-Version request header. The
// server echoes the version it used. Requests naming a version the server
// does not know are rejected so a client never silently gets a different
// response shape.
package version

import "context"

// Version constants. Add new versions here when making breaking changes.
const (
	// Version20261018 is the initial API version.
	Version20261018 = "2026-10-18"
)

// LatestVersion is the current default API version.
const LatestVersion = Version20261018

// Header is the HTTP header used to specify the API version.
const Header = "Lattice-Version"

var known = map[string]bool{
	Version20261018: true,
}

// Known reports whether v is a version this server can answer.
func Known(v string) bool {
	return known[v]
}

type contextKey string

const versionKey contextKey = "api-version"

// FromContext returns the API version from the context.
// Returns LatestVersion if not set.
func FromContext(ctx context.Context) string {
	v, ok := ctx.Value(versionKey).(string)
	if !ok || v == "" {
		return LatestVersion
	}
	return v
}

// WithContext returns a new context with the API version set.
func WithContext(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, versionKey, version)
}

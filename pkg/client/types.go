// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Pattern is one pattern of a trigger definition.
type Pattern struct {
	// Text is the pattern text.
	Text string `json:"text"`

	// Kind is "substring", "regex", "wildcard" or "exact". Empty means substring.
	Kind string `json:"kind,omitempty"`
}

// Definition declares a trigger and its children. It is the body of an
// import request.
type Definition struct {
	Name            string       `json:"name"`
	Patterns        []Pattern    `json:"patterns,omitempty"`
	Script          string       `json:"script,omitempty"`
	Command         string       `json:"command,omitempty"`
	Multiline       bool         `json:"multiline,omitempty"`
	ConditionWindow int          `json:"condition_window,omitempty"`
	Active          *bool        `json:"active,omitempty"`
	Children        []Definition `json:"children,omitempty"`
}

// Trigger is the live state of a trigger in the running tree.
type Trigger struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Patterns        []Pattern `json:"patterns,omitempty"`
	Script          string    `json:"script,omitempty"`
	Command         string    `json:"command,omitempty"`
	Active          bool      `json:"active"`
	Folder          bool      `json:"folder"`
	Temporary       bool      `json:"temporary,omitempty"`
	Multiline       bool      `json:"multiline,omitempty"`
	ConditionWindow int       `json:"condition_window,omitempty"`

	// LiveAttempts is the number of multiline matches in progress.
	LiveAttempts int `json:"live_attempts,omitempty"`

	// NeedsCompile is set while the trigger has an uncompiled pattern or
	// script. Such a trigger never fires.
	NeedsCompile bool `json:"needs_compile"`

	Children []Trigger `json:"children,omitempty"`
}

// Walk calls fn for t and each of its descendants, depth first.
func (t Trigger) Walk(fn func(Trigger)) {
	fn(t)
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

// TempTrigger describes a temporary trigger to create.
//
// Set Pattern for a pattern trigger. Leave Pattern empty and set FireAfter
// for a line-count trigger that fires once, FireAfter lines after a delay
// of StartDelay lines.
type TempTrigger struct {
	Pattern    string `json:"pattern,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Script     string `json:"script"`
	StartDelay int    `json:"start_delay,omitempty"`
	FireAfter  int    `json:"fire_after,omitempty"`
}

// ByNameResult reports how many triggers a name operation touched.
type ByNameResult struct {
	Name    string `json:"name"`
	Matched int    `json:"matched"`
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	// Imported is the number of root definitions added.
	Imported int `json:"imported"`

	// Triggers is the size of the tree after the import.
	Triggers int `json:"triggers"`
}

// SessionStats reports the state of the running session.
type SessionStats struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Lines     int64     `json:"lines"`
	Matched   int64     `json:"matched"`
	Fired     int64     `json:"fired"`
	Triggers  int       `json:"triggers"`
}

// Snapshot describes a saved copy of the trigger tree.
type Snapshot struct {
	ID        string    `json:"id"`
	Profile   string    `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
	Roots     int       `json:"roots"`
	Size      int       `json:"size"`
}

// Event is an entry from the server's event log.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type identifies the kind of event (e.g., "trigger.fired").
	Type string `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Session is the name of the session that produced the event.
	Session string `json:"session"`

	// Payload contains event-specific data.
	Payload map[string]interface{} `json:"payload"`
}

// Health reports server liveness.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

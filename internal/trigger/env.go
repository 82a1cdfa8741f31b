// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package trigger implements the trigger tree: pattern matching, multiline
// condition tracking, line-delta countdowns, action dispatch and persistence.
package trigger

import (
	"time"

	"github.com/rs/zerolog"
)

// ScriptHost compiles and invokes trigger actions. Callbacks are keyed by
// trigger id; the host owns the mapping from id to compiled handle.
type ScriptHost interface {
	// Compile builds the callback for id from body, replacing any previous one.
	Compile(id int64, body string) error

	// Call invokes the callback for id with the captured groups.
	Call(id int64, captures []string, triggerName string) error

	// Run compiles and executes body once without keeping a handle.
	Run(body string) error

	// SetCaptureGroups exposes regex captures and positions to scripts.
	SetCaptureGroups(captures []string, positions []int)

	// ClearCaptureGroups removes captures set by SetCaptureGroups.
	ClearCaptureGroups()

	// Release drops the callback for id.
	Release(id int64)
}

// Sender delivers outgoing commands to the connection.
type Sender interface {
	Send(command string) error
}

// Registry issues ids and tracks registered trigger nodes.
type Registry interface {
	RegisterTrigger(n *Node) bool
	UnregisterTrigger(n *Node)
	NewID() int64
}

// Fire describes a single trigger firing.
type Fire struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Captures []string  `json:"captures,omitempty"`
	Time     time.Time `json:"time"`
}

// Env bundles the collaborators shared by every node of a tree.
type Env struct {
	Scripts  ScriptHost
	Conn     Sender
	Registry Registry
	Log      zerolog.Logger

	// ClearAttemptsOnFire drops every remaining multiline attempt of a node
	// after it fires.
	ClearAttemptsOnFire bool

	// RegexTimeout bounds a single regex evaluation. Zero means no limit.
	RegexTimeout time.Duration

	// OnFire, if set, is called after each firing.
	OnFire func(Fire)

	// OnCompileError, if set, is called when a callback fails to compile.
	OnCompileError func(n *Node, err error)
}

// NopSender discards commands.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(string) error { return nil }

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package script hosts trigger actions written in Lua.
package script

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// ErrNotCompiled is returned when calling a trigger with no compiled callback.
var ErrNotCompiled = errors.New("trigger callback not compiled")

// Host runs trigger callbacks in a single Lua state. It implements
// trigger.ScriptHost.
//
// Built-in functions called from Lua must not call back into Compile, Call
// or Run; Release is safe from within a callback.
type Host struct {
	// mu guards the Lua state.
	mu sync.Mutex
	L  *lua.LState

	// fnMu guards fns.
	fnMu sync.Mutex
	fns  map[int64]*lua.LFunction

	ctl Controller
	log zerolog.Logger
}

// NewHost creates a host with the standard Lua libraries and the built-in
// trigger functions loaded.
func NewHost(log zerolog.Logger) *Host {
	h := &Host{
		L:   lua.NewState(),
		fns: make(map[int64]*lua.LFunction),
		log: log,
	}
	h.registerBuiltins()
	return h
}

// SetController binds the built-ins to c. Until a controller is set, the
// built-ins raise a Lua error.
func (h *Host) SetController(c Controller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctl = c
}

// Close releases the Lua state.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.L.Close()
}

// Compile loads body as the callback for trigger id.
func (h *Host) Compile(id int64, body string) error {
	h.mu.Lock()
	fn, err := h.L.LoadString(body)
	h.mu.Unlock()
	if err != nil {
		return fmt.Errorf("compile trigger %d: %w", id, err)
	}

	h.fnMu.Lock()
	h.fns[id] = fn
	h.fnMu.Unlock()
	return nil
}

// Call invokes the callback of trigger id. The captures are available to
// the script as the global table matches and as the first argument; the
// trigger name is the global trigger.
func (h *Host) Call(id int64, captures []string, triggerName string) error {
	h.fnMu.Lock()
	fn, ok := h.fns[id]
	h.fnMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotCompiled, id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	matches := h.stringTable(captures)
	h.L.SetGlobal("matches", matches)
	h.L.SetGlobal("trigger", lua.LString(triggerName))
	if err := h.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, matches); err != nil {
		return fmt.Errorf("call trigger %q: %w", triggerName, err)
	}
	return nil
}

// Run executes body once.
func (h *Host) Run(body string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.L.DoString(body); err != nil {
		return fmt.Errorf("run script: %w", err)
	}
	return nil
}

// RunFile executes the Lua file at path.
func (h *Host) RunFile(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.L.DoFile(path); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	return nil
}

// SetCaptureGroups exposes captures as matches and their rune offsets as
// positions.
func (h *Host) SetCaptureGroups(captures []string, positions []int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pos := h.L.NewTable()
	for _, p := range positions {
		pos.Append(lua.LNumber(p))
	}
	h.L.SetGlobal("matches", h.stringTable(captures))
	h.L.SetGlobal("positions", pos)
}

// ClearCaptureGroups removes the globals set by SetCaptureGroups.
func (h *Host) ClearCaptureGroups() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.L.SetGlobal("matches", lua.LNil)
	h.L.SetGlobal("positions", lua.LNil)
}

// Release drops the callback of trigger id.
func (h *Host) Release(id int64) {
	h.fnMu.Lock()
	defer h.fnMu.Unlock()
	delete(h.fns, id)
}

// Compiled reports whether trigger id has a callback.
func (h *Host) Compiled(id int64) bool {
	h.fnMu.Lock()
	defer h.fnMu.Unlock()
	_, ok := h.fns[id]
	return ok
}

func (h *Host) stringTable(values []string) *lua.LTable {
	t := h.L.NewTable()
	for _, v := range values {
		t.Append(lua.LString(v))
	}
	return t
}

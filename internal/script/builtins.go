// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/wingedpig/lattice/internal/trigger"
)

// Controller is what Lua built-ins act on.
type Controller interface {
	Send(command string) error
	Echo(text string)
	EnableTrigger(name string)
	DisableTrigger(name string)
	KillTrigger(id int64) bool
	TempTrigger(pattern string, kind trigger.Kind, code string) (int64, error)
	TempLineTrigger(from, howMany int, code string) int64
}

var _ trigger.ScriptHost = (*Host)(nil)

func (h *Host) registerBuiltins() {
	builtins := map[string]lua.LGFunction{
		"send":             h.luaSend,
		"echo":             h.luaEcho,
		"enableTrigger":    h.luaEnableTrigger,
		"disableTrigger":   h.luaDisableTrigger,
		"killTrigger":      h.luaKillTrigger,
		"tempTrigger":      h.luaTempTrigger(trigger.KindSubstring),
		"tempRegexTrigger": h.luaTempTrigger(trigger.KindRegex),
		"tempExactTrigger": h.luaTempTrigger(trigger.KindExact),
		"tempLineTrigger":  h.luaTempLineTrigger,
	}
	for name, fn := range builtins {
		h.L.SetGlobal(name, h.L.NewFunction(fn))
	}
}

// controller is only called from Lua, with mu held.
func (h *Host) controller(L *lua.LState) Controller {
	if h.ctl == nil {
		L.RaiseError("no trigger controller bound")
	}
	return h.ctl
}

func (h *Host) luaSend(L *lua.LState) int {
	cmd := L.CheckString(1)
	if err := h.controller(L).Send(cmd); err != nil {
		L.RaiseError("send: %s", err.Error())
	}
	return 0
}

func (h *Host) luaEcho(L *lua.LState) int {
	text := L.CheckString(1)
	if h.ctl == nil {
		h.log.Info().Str("text", text).Msg("echo")
		return 0
	}
	h.ctl.Echo(text)
	return 0
}

func (h *Host) luaEnableTrigger(L *lua.LState) int {
	h.controller(L).EnableTrigger(L.CheckString(1))
	return 0
}

func (h *Host) luaDisableTrigger(L *lua.LState) int {
	h.controller(L).DisableTrigger(L.CheckString(1))
	return 0
}

func (h *Host) luaKillTrigger(L *lua.LState) int {
	ok := h.controller(L).KillTrigger(L.CheckInt64(1))
	L.Push(lua.LBool(ok))
	return 1
}

func (h *Host) luaTempTrigger(kind trigger.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		pattern := L.CheckString(1)
		code := L.CheckString(2)
		id, err := h.controller(L).TempTrigger(pattern, kind, code)
		if err != nil {
			L.RaiseError("temp trigger: %s", err.Error())
		}
		L.Push(lua.LNumber(id))
		return 1
	}
}

func (h *Host) luaTempLineTrigger(L *lua.LState) int {
	from := L.CheckInt(1)
	howMany := L.CheckInt(2)
	code := L.CheckString(3)
	L.Push(lua.LNumber(h.controller(L).TempLineTrigger(from, howMany, code)))
	return 1
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/rs/zerolog"

	"github.com/wingedpig/lattice/internal/trigger"
)

// Controller gives trigger scripts access to the unit they run in. Its
// methods act on the unit directly and so may only be called from the
// session goroutine, which is where scripts run.
type Controller struct {
	unit *trigger.Unit
	conn trigger.Sender
	log  zerolog.Logger

	// OnEcho, if set, receives text echoed by scripts.
	OnEcho func(text string)
}

// NewController creates a controller for unit. Commands go to conn.
func NewController(unit *trigger.Unit, conn trigger.Sender, log zerolog.Logger) *Controller {
	if conn == nil {
		conn = trigger.NopSender{}
	}
	return &Controller{unit: unit, conn: conn, log: log}
}

func (c *Controller) Send(command string) error {
	c.log.Debug().Str("command", command).Msg("send")
	return c.conn.Send(command)
}

func (c *Controller) Echo(text string) {
	c.log.Info().Str("text", text).Msg("echo")
	if c.OnEcho != nil {
		c.OnEcho(text)
	}
}

func (c *Controller) EnableTrigger(name string)  { c.unit.EnableByName(name) }
func (c *Controller) DisableTrigger(name string) { c.unit.DisableByName(name) }
func (c *Controller) KillTrigger(id int64) bool  { return c.unit.KillTrigger(id) }

func (c *Controller) TempTrigger(pattern string, kind trigger.Kind, code string) (int64, error) {
	return c.unit.TempTrigger(pattern, kind, code)
}

func (c *Controller) TempLineTrigger(from, howMany int, code string) int64 {
	return c.unit.TempLineTrigger(from, howMany, code)
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newMultiline(t *testing.T, u *Unit, window int) *Node {
	t.Helper()
	n := addTrigger(t, u, nil, "ml", KindSubstring, "start", "middle", "end")
	n.SetMultiline(true)
	n.SetConditionWindow(window)
	return n
}

func TestMultiline_Sequences(t *testing.T) {
	tests := []struct {
		name   string
		window int
		lines  []string
		fires  int
	}{
		{name: "in order", window: 2, lines: []string{"start", "middle", "end"}, fires: 1},
		{name: "gaps inside window", window: 2, lines: []string{"start", "x", "middle", "x", "end"}, fires: 1},
		{name: "consecutive with window one", window: 1, lines: []string{"start", "middle", "end"}, fires: 1},
		{name: "gap exceeds window one", window: 1, lines: []string{"start", "middle", "x", "end"}, fires: 0},
		{name: "out of order", window: 5, lines: []string{"middle", "start", "end"}, fires: 0},
		{name: "same line", window: 0, lines: []string{"start middle end"}, fires: 1},
		{name: "two attempts", window: 5, lines: []string{"start", "start", "middle", "end"}, fires: 2},
		{name: "no start", window: 5, lines: []string{"middle", "end"}, fires: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, host, _ := newTestUnit(t)
			newMultiline(t, u, tt.window)

			feed(u, tt.lines...)
			assert.Len(t, host.calls, tt.fires)
		})
	}
}

func TestMultiline_CompletionSatisfiesNode(t *testing.T) {
	u, _, _ := newTestUnit(t)
	n := newMultiline(t, u, 3)

	assert.False(t, n.Match("start"))
	assert.False(t, n.Match("middle"))
	assert.True(t, n.Match("end"))
	assert.Zero(t, n.LiveAttempts())
}

func TestMultiline_AttemptsExpire(t *testing.T) {
	u, _, _ := newTestUnit(t)
	n := newMultiline(t, u, 2)

	n.Match("start")
	assert.Equal(t, 1, n.LiveAttempts())
	n.Match("x")
	n.Match("x")
	assert.Equal(t, 1, n.LiveAttempts())
	n.Match("x")
	assert.Zero(t, n.LiveAttempts())
}

func TestMultiline_ChildrenSeeCompletingLine(t *testing.T) {
	u, host, _ := newTestUnit(t)
	n := newMultiline(t, u, 3)
	addTrigger(t, u, n, "child", KindSubstring, "e")

	feed(u, "start", "middle", "end")
	assert.Equal(t, []string{"ml", "child"}, host.callNames())
}

func TestMultiline_ClearAttemptsOnFire(t *testing.T) {
	lines := []string{"start", "middle", "start", "end", "middle", "end"}

	t.Run("kept by default", func(t *testing.T) {
		u, host, _ := newTestUnit(t)
		newMultiline(t, u, 5)

		feed(u, lines...)
		assert.Len(t, host.calls, 2)
	})

	t.Run("cleared", func(t *testing.T) {
		u, host, _ := newTestUnit(t)
		u.Env().ClearAttemptsOnFire = true
		newMultiline(t, u, 5)

		feed(u, lines...)
		assert.Len(t, host.calls, 1)
	})
}

func TestMultiline_ResetOnModeChangeAndKill(t *testing.T) {
	u, host, _ := newTestUnit(t)
	n := newMultiline(t, u, 5)

	n.Match("start")
	n.SetMultiline(true)
	assert.Zero(t, n.LiveAttempts())

	n.Match("start")
	n.KillByName("ml")
	assert.Zero(t, n.LiveAttempts())

	n.SetActive(true)
	feed(u, "middle", "end")
	assert.Empty(t, host.calls)
}

func TestMatchState(t *testing.T) {
	s := newMatchState(3, 1)
	assert.Equal(t, 1, s.next)
	assert.False(t, s.complete())

	assert.True(t, s.age())
	assert.False(t, s.age())

	s = newMatchState(2, 1)
	s.age()
	s.advance()
	assert.Equal(t, 1, s.remaining)
	assert.True(t, s.complete())
}

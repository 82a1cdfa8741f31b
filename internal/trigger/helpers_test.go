// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	id        int64
	name      string
	captures  []string
	groups    []string // capture groups visible to scripts at call time
	positions []int
}

// fakeHost records every interaction with the script host.
type fakeHost struct {
	failCompile bool
	compiles    int
	compiled    map[int64]string
	calls       []fakeCall
	runs        []string
	released    []int64
	groups      []string
	positions   []int
	onRun       func(body string)
}

func newFakeHost() *fakeHost {
	return &fakeHost{compiled: make(map[int64]string)}
}

func (h *fakeHost) Compile(id int64, body string) error {
	h.compiles++
	if h.failCompile {
		return errors.New("syntax error")
	}
	h.compiled[id] = body
	return nil
}

func (h *fakeHost) Call(id int64, captures []string, name string) error {
	if _, ok := h.compiled[id]; !ok {
		return errors.New("not compiled")
	}
	h.calls = append(h.calls, fakeCall{
		id:        id,
		name:      name,
		captures:  captures,
		groups:    h.groups,
		positions: h.positions,
	})
	return nil
}

func (h *fakeHost) Run(body string) error {
	h.runs = append(h.runs, body)
	if h.onRun != nil {
		h.onRun(body)
	}
	return nil
}

func (h *fakeHost) SetCaptureGroups(captures []string, positions []int) {
	h.groups = captures
	h.positions = positions
}

func (h *fakeHost) ClearCaptureGroups() {
	h.groups = nil
	h.positions = nil
}

func (h *fakeHost) Release(id int64) {
	h.released = append(h.released, id)
	delete(h.compiled, id)
}

func (h *fakeHost) callNames() []string {
	names := make([]string, 0, len(h.calls))
	for _, c := range h.calls {
		names = append(names, c.name)
	}
	return names
}

type fakeSender struct {
	sent []string
}

func (s *fakeSender) Send(cmd string) error {
	s.sent = append(s.sent, cmd)
	return nil
}

func newTestUnit(t *testing.T) (*Unit, *fakeHost, *fakeSender) {
	t.Helper()
	host := newFakeHost()
	conn := &fakeSender{}
	u := NewUnit(Env{Scripts: host, Conn: conn, Log: zerolog.Nop()})
	return u, host, conn
}

// addTrigger registers a trigger whose patterns all share one kind.
func addTrigger(t *testing.T, u *Unit, parent *Node, name string, kind Kind, patterns ...string) *Node {
	t.Helper()
	n := u.NewTrigger(parent, name)
	kinds := make([]Kind, len(patterns))
	for i := range kinds {
		kinds[i] = kind
	}
	require.NoError(t, n.SetPatterns(patterns, kinds))
	n.SetScript("-- " + name)
	return n
}

func feed(u *Unit, lines ...string) {
	for _, line := range lines {
		u.ProcessLine(line)
	}
}

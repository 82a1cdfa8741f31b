// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

// matchState is one in-flight attempt of a multiline trigger. Condition 0
// is satisfied when the attempt is created.
type matchState struct {
	conditions int // total number of conditions
	next       int // index of the next condition expected
	window     int // lines a step may take
	remaining  int // lines left in the current window
}

func newMatchState(conditions, window int) matchState {
	return matchState{
		conditions: conditions,
		next:       1,
		window:     window,
		remaining:  window,
	}
}

// age consumes one line of the window. It reports false once the window is
// exhausted.
func (s *matchState) age() bool {
	s.remaining--
	return s.remaining >= 0
}

// advance marks the expected condition as matched and opens a fresh window
// for the next one.
func (s *matchState) advance() {
	s.next++
	s.remaining = s.window
}

func (s *matchState) complete() bool {
	return s.next >= s.conditions
}

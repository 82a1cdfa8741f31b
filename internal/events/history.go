// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"slices"
	"sync"
	"time"
)

const (
	defaultHistoryEvents = 10000
	defaultHistoryAge    = time.Hour
)

// ErrHistoryClosed is returned by Add after Close.
var ErrHistoryClosed = errors.New("event history is closed")

// EventHistoryConfig configures event history.
type EventHistoryConfig struct {
	MaxEvents int
	MaxAge    time.Duration
}

// EventHistory keeps the most recent events in a ring of MaxEvents slots.
// Events older than MaxAge are dropped by Prune.
type EventHistory struct {
	mu      sync.RWMutex
	ring    []Event
	head    int // slot of the oldest event once the ring is full
	size    int
	maxAge  time.Duration
	closed  bool
	matcher *PatternMatcher
}

// NewEventHistory creates an empty history.
func NewEventHistory(cfg EventHistoryConfig) *EventHistory {
	h := &EventHistory{
		size:    cfg.MaxEvents,
		maxAge:  cfg.MaxAge,
		matcher: NewPatternMatcher(),
	}
	if h.size <= 0 {
		h.size = defaultHistoryEvents
	}
	if h.maxAge <= 0 {
		h.maxAge = defaultHistoryAge
	}
	return h
}

// Add records event, overwriting the oldest one when the ring is full.
func (h *EventHistory) Add(event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHistoryClosed
	}

	if len(h.ring) < h.size {
		h.ring = append(h.ring, event)
		return nil
	}
	h.ring[h.head] = event
	h.head = (h.head + 1) % h.size
	return nil
}

// each calls fn for every stored event in insertion order. Callers hold mu.
func (h *EventHistory) each(fn func(Event)) {
	for i := 0; i < len(h.ring); i++ {
		fn(h.ring[(h.head+i)%len(h.ring)])
	}
}

// Query returns the events matching filter, oldest first. With a Limit
// only the newest Limit matches are returned.
func (h *EventHistory) Query(filter EventFilter) ([]Event, error) {
	match, err := h.compile(filter)
	if err != nil {
		return nil, err
	}

	var out []Event
	h.mu.RLock()
	h.each(func(e Event) {
		if match(e) {
			out = append(out, e)
		}
	})
	h.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// compile turns filter into a predicate. Type patterns use the bus pattern
// syntax, so an invalid pattern is an error.
func (h *EventHistory) compile(filter EventFilter) (func(Event) bool, error) {
	types := make([]CompiledPattern, 0, len(filter.Types))
	for _, p := range filter.Types {
		cp, err := h.matcher.Compile(p)
		if err != nil {
			return nil, err
		}
		types = append(types, cp)
	}

	return func(e Event) bool {
		if len(types) > 0 && !slices.ContainsFunc(types, func(cp CompiledPattern) bool { return cp.Match(e.Type) }) {
			return false
		}
		if filter.Session != "" && e.Session != filter.Session {
			return false
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			return false
		}
		if !filter.Until.IsZero() && e.Timestamp.After(filter.Until) {
			return false
		}
		return true
	}, nil
}

// Prune drops events older than MaxAge.
func (h *EventHistory) Prune() error {
	cutoff := time.Now().Add(-h.maxAge)

	h.mu.Lock()
	defer h.mu.Unlock()

	kept := make([]Event, 0, len(h.ring))
	h.each(func(e Event) {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	})
	h.ring = kept
	h.head = 0
	return nil
}

// Len returns the number of stored events.
func (h *EventHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ring)
}

// Close drops all events. Later Adds fail.
func (h *EventHistory) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.ring = nil
	h.head = 0
	return nil
}

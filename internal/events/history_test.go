// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistory(maxEvents int, maxAge time.Duration) *EventHistory {
	return NewEventHistory(EventHistoryConfig{MaxEvents: maxEvents, MaxAge: maxAge})
}

func TestEventHistory_MaxEvents(t *testing.T) {
	history := newHistory(5, time.Hour)
	defer history.Close()

	for i := 0; i < 10; i++ {
		history.Add(Event{
			ID:        strconv.Itoa(i),
			Type:      EventTriggerFired,
			Timestamp: time.Now(),
		})
	}

	events, err := history.Query(EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 5)

	// Oldest events are dropped
	for i, e := range events {
		assert.Equal(t, strconv.Itoa(5+i), e.ID)
	}
}

func TestEventHistory_Close(t *testing.T) {
	history := newHistory(3, time.Hour)
	require.NoError(t, history.Add(Event{ID: "a", Type: EventTriggerFired, Timestamp: time.Now()}))
	assert.Equal(t, 1, history.Len())

	require.NoError(t, history.Close())
	assert.Equal(t, 0, history.Len())
	assert.ErrorIs(t, history.Add(Event{ID: "b", Type: EventTriggerFired}), ErrHistoryClosed)

	events, err := history.Query(EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventHistory_BadTypePattern(t *testing.T) {
	history := newHistory(3, time.Hour)
	defer history.Close()
	_, err := history.Query(EventFilter{Types: []string{"trigger.**.fired"}})
	assert.Error(t, err)
}

func TestEventHistory_Query(t *testing.T) {
	history := newHistory(100, time.Hour)
	defer history.Close()

	now := time.Now()
	for _, e := range []Event{
		{ID: "1", Type: EventTriggerFired, Session: "main", Timestamp: now.Add(-30 * time.Minute)},
		{ID: "2", Type: EventTriggerCompileFailed, Session: "main", Timestamp: now.Add(-10 * time.Minute)},
		{ID: "3", Type: EventSessionStarted, Session: "alt", Timestamp: now.Add(-5 * time.Minute)},
		{ID: "4", Type: EventTriggerFired, Session: "alt", Timestamp: now},
	} {
		require.NoError(t, history.Add(e))
	}

	tests := []struct {
		name   string
		filter EventFilter
		ids    []string
	}{
		{"all", EventFilter{}, []string{"1", "2", "3", "4"}},
		{"exact type", EventFilter{Types: []string{EventTriggerFired}}, []string{"1", "4"}},
		{"wildcard type", EventFilter{Types: []string{"trigger.*"}}, []string{"1", "2", "4"}},
		{"several types", EventFilter{Types: []string{"session.*", EventTriggerCompileFailed}}, []string{"2", "3"}},
		{"session", EventFilter{Session: "alt"}, []string{"3", "4"}},
		{"since", EventFilter{Since: now.Add(-15 * time.Minute)}, []string{"2", "3", "4"}},
		{"until", EventFilter{Until: now.Add(-20 * time.Minute)}, []string{"1"}},
		{"limit keeps newest", EventFilter{Limit: 2}, []string{"3", "4"}},
		{"combined", EventFilter{Types: []string{"trigger.*"}, Session: "main", Since: now.Add(-20 * time.Minute)}, []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := history.Query(tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(events))
			for _, e := range events {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestEventHistory_Prune(t *testing.T) {
	history := newHistory(100, 100*time.Millisecond)
	defer history.Close()

	history.Add(Event{ID: "old", Type: EventTriggerFired, Timestamp: time.Now().Add(-200 * time.Millisecond)})
	history.Add(Event{ID: "new", Type: EventTriggerFired, Timestamp: time.Now()})

	require.NoError(t, history.Prune())

	events, err := history.Query(EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].ID)
}

func TestEventHistory_Order(t *testing.T) {
	history := newHistory(100, time.Hour)
	defer history.Close()

	now := time.Now()
	history.Add(Event{ID: "3", Type: EventTriggerFired, Timestamp: now.Add(2 * time.Second)})
	history.Add(Event{ID: "1", Type: EventTriggerFired, Timestamp: now})
	history.Add(Event{ID: "2", Type: EventTriggerFired, Timestamp: now.Add(time.Second)})

	result, err := history.Query(EventFilter{})
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "1", result[0].ID)
	assert.Equal(t, "2", result[1].ID)
	assert.Equal(t, "3", result[2].ID)
}

func TestEventHistory_Concurrency(t *testing.T) {
	history := newHistory(1000, time.Hour)
	defer history.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				history.Add(Event{ID: strconv.Itoa(n*100 + j), Type: EventTriggerFired, Timestamp: time.Now()})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				history.Query(EventFilter{Types: []string{"trigger.*"}})
			}
		}()
	}
	wg.Wait()

	events, err := history.Query(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1000)
}

func TestEventHistory_Integration_WithBus(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 10,
		HistoryMaxAge:    time.Hour,
	})
	defer bus.Close()

	for i := 0; i < 15; i++ {
		bus.Publish(context.Background(), Event{Type: EventTriggerFired, Session: "main"})
	}

	history, err := bus.History(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 10)
}

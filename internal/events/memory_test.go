// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventBus_Publish_AssignsFields(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var received Event
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		received = e
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), Event{
		Type:    EventTriggerFired,
		Payload: map[string]interface{}{"name": "combat"},
	})
	require.NoError(t, err)

	_, err = uuid.Parse(received.ID)
	assert.NoError(t, err)
	assert.Equal(t, "1.0", received.Version)
	assert.False(t, received.Timestamp.IsZero())
	assert.Equal(t, "combat", received.Payload["name"])
}

func TestMemoryEventBus_Subscribe_PatternMatching(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var triggers, all int32
	_, err := bus.Subscribe("trigger.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&triggers, 1)
		return nil
	})
	require.NoError(t, err)
	_, err = bus.Subscribe("*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&all, 1)
		return nil
	})
	require.NoError(t, err)

	for _, typ := range []string{EventTriggerFired, EventTriggerCompileFailed, EventTriggersReloaded, EventSessionStarted} {
		require.NoError(t, bus.Publish(context.Background(), Event{Type: typ}))
	}

	// Synchronous handlers have run by the time Publish returns
	assert.Equal(t, int32(2), atomic.LoadInt32(&triggers))
	assert.Equal(t, int32(4), atomic.LoadInt32(&all))
}

func TestMemoryEventBus_Subscribe_InvalidPattern(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	_, err := bus.Subscribe("", func(ctx context.Context, e Event) error { return nil })
	assert.Error(t, err)
}

func TestMemoryEventBus_SyncOrder(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var order []string
	record := func(name string) EventHandler {
		return func(context.Context, Event) error {
			order = append(order, name)
			return nil
		}
	}
	_, err := bus.Subscribe("trigger.*", record("first"))
	require.NoError(t, err)
	middle, err := bus.Subscribe("*", record("middle"))
	require.NoError(t, err)
	_, err = bus.Subscribe(EventTriggerFired, record("last"))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventTriggerFired}))
	assert.Equal(t, []string{"first", "middle", "last"}, order)

	require.NoError(t, bus.Unsubscribe(middle))
	order = nil
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventTriggerFired}))
	assert.Equal(t, []string{"first", "last"}, order)
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count int32
	subID, err := bus.Subscribe("trigger.*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), Event{Type: EventTriggerFired})
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))

	require.NoError(t, bus.Unsubscribe(subID))

	bus.Publish(context.Background(), Event{Type: EventTriggerFired})
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))

	assert.ErrorIs(t, bus.Unsubscribe(subID), ErrSubscriptionNotFound)
}

func TestMemoryEventBus_SubscribeAsync(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	received := make(chan Event, 10)
	_, err := bus.SubscribeAsync("trigger.fired", func(ctx context.Context, e Event) error {
		received <- e
		return nil
	}, 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		bus.Publish(context.Background(), Event{Type: EventTriggerFired, Payload: map[string]interface{}{"n": i}})
	}

	for i := 0; i < 5; i++ {
		select {
		case e := <-received:
			assert.Equal(t, i, e.Payload["n"])
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestMemoryEventBus_SubscribeAsync_BufferFull(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	_, err := bus.SubscribeAsync("*", func(ctx context.Context, e Event) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}, 2)
	require.NoError(t, err)

	bus.Publish(context.Background(), Event{Type: EventTriggerFired})
	<-started

	// Handler is blocked; two fit in the buffer, the rest are dropped
	for i := 0; i < 5; i++ {
		bus.Publish(context.Background(), Event{Type: EventTriggerFired})
	}
	close(release)

	assert.Equal(t, uint64(3), bus.Dropped())
}

func TestMemoryEventBus_HandlerErrorAndPanic(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count int32
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return assert.AnError
	})
	require.NoError(t, err)
	_, err = bus.Subscribe("*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		panic("boom")
	})
	require.NoError(t, err)
	_, err = bus.Subscribe("*", func(ctx context.Context, e Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)

	assert.NoError(t, bus.Publish(context.Background(), Event{Type: EventScriptEcho}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&count))
}

func TestMemoryEventBus_Close(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})

	_, err := bus.SubscribeAsync("*", func(ctx context.Context, e Event) error { return nil }, 1)
	require.NoError(t, err)

	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), Event{Type: EventSessionEnded}), ErrBusClosed)
	_, err = bus.Subscribe("*", func(ctx context.Context, e Event) error { return nil })
	assert.ErrorIs(t, err, ErrBusClosed)

	// Double close is safe
	assert.NoError(t, bus.Close())
}

func TestMemoryEventBus_Concurrency(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{HistoryMaxEvents: 1000})
	defer bus.Close()

	var count int64
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(context.Background(), Event{Type: EventTriggerFired})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), atomic.LoadInt64(&count))
	history, err := bus.History(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 1000)
}

func TestMemoryEventBus_DefaultSession(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{HistoryMaxEvents: 100, HistoryMaxAge: time.Hour})
	defer bus.Close()

	var received []Event
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		received = append(received, e)
		return nil
	})
	require.NoError(t, err)

	bus.SetDefaultSession("main")
	bus.Publish(context.Background(), Event{Type: EventTriggerFired})
	bus.Publish(context.Background(), Event{Type: EventTriggerFired, Session: "alt"})
	bus.SetDefaultSession("other")
	bus.Publish(context.Background(), Event{Type: EventSnapshotSaved})

	require.Len(t, received, 3)
	assert.Equal(t, "main", received[0].Session)
	assert.Equal(t, "alt", received[1].Session)
	assert.Equal(t, "other", received[2].Session)

	history, err := bus.History(EventFilter{Session: "main"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, EventTriggerFired, history[0].Type)
}

func TestMemoryEventBus_DefaultSession_Concurrent(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{HistoryMaxEvents: 1000})
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.SetDefaultSession(fmt.Sprintf("session-%d", n))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(context.Background(), Event{Type: EventTriggerFired})
			}
		}()
	}
	wg.Wait()

	history, err := bus.History(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 500)
}

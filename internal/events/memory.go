// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrBusClosed is returned when operating on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// ErrSubscriptionNotFound is returned when unsubscribing with invalid ID.
var ErrSubscriptionNotFound = errors.New("subscription not found")

const (
	eventVersion      = "1.0"
	defaultAsyncQueue = 100
)

// MemoryBusConfig configures the memory event bus.
type MemoryBusConfig struct {
	HistoryMaxEvents int
	HistoryMaxAge    time.Duration
	Log              zerolog.Logger
}

// MemoryEventBus delivers events in process. Synchronous subscribers run on
// the publisher's goroutine in subscription order; async subscribers each
// get a bounded queue and their own goroutine.
type MemoryEventBus struct {
	mu      sync.Mutex
	subs    atomic.Pointer[[]*subscription] // copy on write
	session atomic.Pointer[string]
	nextID  atomic.Uint64
	dropped atomic.Uint64
	closed  atomic.Bool

	history *EventHistory
	matcher *PatternMatcher
	log     zerolog.Logger
	done    chan struct{}
	wg      sync.WaitGroup
}

type subscription struct {
	id      SubscriptionID
	pattern CompiledPattern
	handler EventHandler
	queue   chan Event    // nil for synchronous subscribers
	stop    chan struct{} // closed on unsubscribe
}

// NewMemoryEventBus creates a bus and starts its history pruner.
func NewMemoryEventBus(cfg MemoryBusConfig) *MemoryEventBus {
	bus := &MemoryEventBus{
		history: NewEventHistory(EventHistoryConfig{
			MaxEvents: cfg.HistoryMaxEvents,
			MaxAge:    cfg.HistoryMaxAge,
		}),
		matcher: NewPatternMatcher(),
		log:     cfg.Log.With().Str("component", "events").Logger(),
		done:    make(chan struct{}),
	}
	bus.subs.Store(&[]*subscription{})

	bus.wg.Add(1)
	go bus.prune(pruneInterval(cfg.HistoryMaxAge))
	return bus
}

// pruneInterval is a tenth of maxAge, kept between a minute and an hour.
func pruneInterval(maxAge time.Duration) time.Duration {
	return min(max(maxAge/10, time.Minute), time.Hour)
}

func (bus *MemoryEventBus) prune(every time.Duration) {
	defer bus.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-bus.done:
			return
		case <-ticker.C:
			bus.history.Prune()
		}
	}
}

// SetDefaultSession sets the session name for events that don't specify one.
func (bus *MemoryEventBus) SetDefaultSession(session string) {
	bus.session.Store(&session)
}

// Dropped returns how many events async subscribers could not accept.
func (bus *MemoryEventBus) Dropped() uint64 {
	return bus.dropped.Load()
}

// stamp fills in the envelope fields the publisher left empty.
func (bus *MemoryEventBus) stamp(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Version == "" {
		event.Version = eventVersion
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Session == "" {
		if s := bus.session.Load(); s != nil {
			event.Session = *s
		}
	}
}

// Publish records event in history and hands it to every matching
// subscriber.
func (bus *MemoryEventBus) Publish(ctx context.Context, event Event) error {
	if bus.closed.Load() {
		return ErrBusClosed
	}
	bus.stamp(&event)
	bus.history.Add(event)

	for _, sub := range *bus.subs.Load() {
		if sub.pattern.Match(event.Type) {
			bus.deliver(ctx, sub, event)
		}
	}
	return nil
}

func (bus *MemoryEventBus) deliver(ctx context.Context, sub *subscription, event Event) {
	if sub.queue == nil {
		bus.call(ctx, sub, event)
		return
	}
	select {
	case sub.queue <- event:
	default:
		bus.dropped.Add(1)
		bus.log.Warn().Str("type", event.Type).Str("subscription", string(sub.id)).Msg("async queue full, event dropped")
	}
}

// call runs the handler, logging its error or panic.
func (bus *MemoryEventBus) call(ctx context.Context, sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.log.Error().Str("type", event.Type).Str("subscription", string(sub.id)).Interface("panic", r).Msg("event handler panic")
		}
	}()
	if err := sub.handler(ctx, event); err != nil {
		bus.log.Debug().Err(err).Str("type", event.Type).Str("subscription", string(sub.id)).Msg("event handler failed")
	}
}

func (bus *MemoryEventBus) drain(sub *subscription) {
	defer bus.wg.Done()
	for {
		select {
		case <-sub.stop:
			return
		case event := <-sub.queue:
			bus.call(context.Background(), sub, event)
		}
	}
}

// Subscribe registers a synchronous handler for events matching pattern.
func (bus *MemoryEventBus) Subscribe(pattern string, handler EventHandler) (SubscriptionID, error) {
	return bus.add(pattern, handler, 0)
}

// SubscribeAsync registers a handler fed through a queue of bufferSize
// events (100 when bufferSize is not positive). Events published while
// the queue is full are dropped and counted.
func (bus *MemoryEventBus) SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error) {
	if bufferSize <= 0 {
		bufferSize = defaultAsyncQueue
	}
	return bus.add(pattern, handler, bufferSize)
}

func (bus *MemoryEventBus) add(pattern string, handler EventHandler, queue int) (SubscriptionID, error) {
	compiled, err := bus.matcher.Compile(pattern)
	if err != nil {
		return "", err
	}
	sub := &subscription{
		id:      SubscriptionID("sub-" + strconv.FormatUint(bus.nextID.Add(1), 10)),
		pattern: compiled,
		handler: handler,
		stop:    make(chan struct{}),
	}
	if queue > 0 {
		sub.queue = make(chan Event, queue)
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.closed.Load() {
		return "", ErrBusClosed
	}
	subs := append(slices.Clone(*bus.subs.Load()), sub)
	bus.subs.Store(&subs)

	if sub.queue != nil {
		bus.wg.Add(1)
		go bus.drain(sub)
	}
	return sub.id, nil
}

// Unsubscribe removes a subscription and stops its queue.
func (bus *MemoryEventBus) Unsubscribe(id SubscriptionID) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	current := *bus.subs.Load()
	i := slices.IndexFunc(current, func(s *subscription) bool { return s.id == id })
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	close(current[i].stop)
	subs := slices.Delete(slices.Clone(current), i, i+1)
	bus.subs.Store(&subs)
	return nil
}

// History retrieves past events matching filter.
func (bus *MemoryEventBus) History(filter EventFilter) ([]Event, error) {
	return bus.history.Query(filter)
}

// Close stops the pruner and every async queue, then waits for them.
// Closing twice is a no-op.
func (bus *MemoryEventBus) Close() error {
	bus.mu.Lock()
	if bus.closed.Swap(true) {
		bus.mu.Unlock()
		return nil
	}
	close(bus.done)
	for _, sub := range *bus.subs.Load() {
		close(sub.stop)
	}
	bus.subs.Store(&[]*subscription{})
	bus.mu.Unlock()

	bus.wg.Wait()
	return bus.history.Close()
}

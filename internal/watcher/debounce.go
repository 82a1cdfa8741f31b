// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"sync"
	"time"
)

const defaultDebounceDuration = 100 * time.Millisecond

// Debouncer runs the last function given for a key once the key has been
// quiet for the debounce duration.
type Debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	waiting  map[string]*debounced
}

type debounced struct {
	timer *time.Timer
	fn    func()
}

// NewDebouncer creates a debouncer. A non-positive duration means 100ms.
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration <= 0 {
		duration = defaultDebounceDuration
	}
	return &Debouncer{duration: duration, waiting: make(map[string]*debounced)}
}

// Debounce (re)starts key's timer with fn as the function to run.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old := d.waiting[key]; old != nil {
		old.timer.Stop()
	}
	entry := &debounced{fn: fn}
	entry.timer = time.AfterFunc(d.duration, func() {
		// A timer that lost the race with Stop finds a newer entry.
		if d.take(key, entry) {
			fn()
		}
	})
	d.waiting[key] = entry
}

// take removes key's entry if it is still want (or any entry when want is
// nil) and reports whether something was removed.
func (d *Debouncer) take(key string, want *debounced) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.waiting[key]
	if cur == nil || (want != nil && cur != want) {
		return false
	}
	cur.timer.Stop()
	delete(d.waiting, key)
	return true
}

// Flush runs key's pending function immediately. It reports whether one
// was pending.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	entry := d.waiting[key]
	d.mu.Unlock()
	if entry == nil || !d.take(key, entry) {
		return false
	}
	entry.fn()
	return true
}

// Pending returns how many keys have a function waiting to run.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiting)
}

// Cancel drops key's pending function.
func (d *Debouncer) Cancel(key string) {
	d.take(key, nil)
}

// Stop drops every pending function.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, entry := range d.waiting {
		entry.timer.Stop()
		delete(d.waiting, key)
	}
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session feeds connection output to a trigger unit. A Session is
// the only goroutine that touches its unit: lines and control operations
// are queued and executed in order.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog"

	"github.com/wingedpig/lattice/internal/trigger"
)

// ErrSessionClosed is returned when feeding a session that has stopped.
var ErrSessionClosed = errors.New("session closed")

const defaultLineBuffer = 256

// Options configures a Session.
type Options struct {
	Name       string
	StripANSI  bool
	LineBuffer int
	Log        zerolog.Logger
}

// Stats is a snapshot of session counters.
type Stats struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Lines     int64     `json:"lines"`
	Matched   int64     `json:"matched"`
	Fired     int64     `json:"fired"`
	Triggers  int       `json:"triggers"`
}

// work is a queued line or, when fn is set, a control operation.
type work struct {
	line string
	fn   func(*trigger.Unit) error
	done chan error
}

// Session owns a trigger unit and serializes all access to it.
type Session struct {
	name      string
	unit      *trigger.Unit
	stripANSI bool
	log       zerolog.Logger

	queue chan work
	done  chan struct{}

	running   atomic.Bool
	startedAt atomic.Int64
	processed atomic.Int64
	matched   atomic.Int64
	fired     atomic.Int64

	closeOnce sync.Once
}

// New creates a session for unit. It chains a fire counter in front of the
// unit's OnFire observer, so it must be called before lines are processed.
func New(unit *trigger.Unit, opts Options) *Session {
	buf := opts.LineBuffer
	if buf <= 0 {
		buf = defaultLineBuffer
	}
	s := &Session{
		name:      opts.Name,
		unit:      unit,
		stripANSI: opts.StripANSI,
		log:       opts.Log,
		queue:     make(chan work, buf),
		done:      make(chan struct{}),
	}

	env := unit.Env()
	next := env.OnFire
	env.OnFire = func(f trigger.Fire) {
		s.fired.Add(1)
		if next != nil {
			next(f)
		}
	}
	return s
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Run processes queued lines and operations in order until ctx is
// cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.running.Store(true)
	s.startedAt.Store(time.Now().UnixNano())
	defer s.close()

	s.log.Info().Str("session", s.name).Msg("session started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Str("session", s.name).Int64("lines", s.processed.Load()).Msg("session stopped")
			return nil
		case w := <-s.queue:
			if w.fn != nil {
				w.done <- w.fn(s.unit)
				continue
			}
			s.process(w.line)
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.running.Store(false)
		close(s.done)
	})
}

func (s *Session) process(line string) {
	line = strings.TrimSuffix(line, "\r")
	if s.stripANSI {
		line = ansi.Strip(line)
	}
	s.processed.Add(1)
	if s.unit.ProcessLine(line) {
		s.matched.Add(1)
	}
}

// Feed queues line for matching.
func (s *Session) Feed(ctx context.Context, line string) error {
	return s.enqueue(ctx, work{line: line})
}

func (s *Session) enqueue(ctx context.Context, w work) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.queue <- w:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the session goroutine after every line queued before it,
// and returns its error. It must not be called from a trigger action, which
// already runs on that goroutine.
func (s *Session) Do(ctx context.Context, fn func(*trigger.Unit) error) error {
	w := work{fn: fn, done: make(chan error, 1)}
	if err := s.enqueue(ctx, w); err != nil {
		return err
	}
	select {
	case err := <-w.done:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pump starts src and feeds its lines until it ends or ctx is cancelled.
// A source that ends cleanly returns nil.
func (s *Session) Pump(ctx context.Context, src Source) error {
	lineCh := make(chan string, defaultLineBuffer)
	errCh := make(chan error, 1)
	if err := src.Start(ctx, lineCh, errCh); err != nil {
		return err
	}
	defer src.Stop()

	s.log.Info().Str("session", s.name).Str("source", src.Name()).Msg("reading source")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case line, ok := <-lineCh:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
				}
				s.log.Info().Str("session", s.name).Str("source", src.Name()).Msg("source ended")
				return nil
			}
			if err := s.Feed(ctx, line); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

// Stats returns the current counters.
func (s *Session) Stats() Stats {
	st := Stats{
		Name:     s.name,
		Running:  s.running.Load(),
		Lines:    s.processed.Load(),
		Matched:  s.matched.Load(),
		Fired:    s.fired.Load(),
		Triggers: s.unit.Len(),
	}
	if ns := s.startedAt.Load(); ns != 0 {
		st.StartedAt = time.Unix(0, ns)
	}
	return st
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const (
	scanBufferSize = 64 * 1024
	maxLineSize    = 1024 * 1024
	stopTimeout    = time.Second
)

// Source produces the lines of a session.
type Source interface {
	// Name identifies the source in logs and status output.
	Name() string

	// Start begins reading. Lines are sent to lineCh, which is closed when
	// the source ends; read failures are sent to errCh.
	Start(ctx context.Context, lineCh chan<- string, errCh chan<- error) error

	// Stop ends reading and waits for the reader goroutine.
	Stop() error

	Status() SourceStatus
}

// SourceStatus describes a source's connection state.
type SourceStatus struct {
	Connected   bool      `json:"connected"`
	Error       string    `json:"error,omitempty"`
	LastConnect time.Time `json:"last_connect,omitempty"`
	LastError   time.Time `json:"last_error,omitempty"`
	LinesRead   int64     `json:"lines_read"`
}

// LookupEncoding returns the character encoding with the given WHATWG
// name or label. An empty name means UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = "utf-8"
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

type sourceBase struct {
	mu     sync.RWMutex
	status SourceStatus
	cancel context.CancelFunc
	wg     sync.WaitGroup

	enc encoding.Encoding
}

// SetEncoding decodes source bytes with enc instead of treating them as
// UTF-8. It must be called before Start.
func (s *sourceBase) SetEncoding(enc encoding.Encoding) {
	s.enc = enc
}

// Stop cancels the reader and waits for it.
func (s *sourceBase) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// Status returns the current connection status.
func (s *sourceBase) Status() SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *sourceBase) setConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Connected = true
	s.status.LastConnect = time.Now()
	s.status.Error = ""
}

func (s *sourceBase) setDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Connected = false
}

func (s *sourceBase) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Connected = false
	s.status.Error = err.Error()
	s.status.LastError = time.Now()
}

func (s *sourceBase) incrementLines() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LinesRead++
}

// scan sends every line of r to lineCh with a trailing carriage return
// removed. It returns the first read error other than io.EOF.
func (s *sourceBase) scan(ctx context.Context, r io.Reader, lineCh chan<- string) error {
	if s.enc != nil {
		r = transform.NewReader(r, s.enc.NewDecoder())
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufferSize), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		select {
		case <-ctx.Done():
			return nil
		case lineCh <- line:
			s.incrementLines()
		}
	}
	return scanner.Err()
}

// ReaderSource reads lines from an io.Reader such as stdin.
type ReaderSource struct {
	sourceBase
	name string
	r    io.Reader
}

// NewReaderSource creates a source over r.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

// Name returns the source name.
func (s *ReaderSource) Name() string {
	return fmt.Sprintf("reader:%s", s.name)
}

// Start begins reading r.
func (s *ReaderSource) Start(ctx context.Context, lineCh chan<- string, errCh chan<- error) error {
	if s.r == nil {
		return errors.New("reader source has no reader")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.setConnected()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(lineCh)
		defer s.setDisconnected()

		if err := s.scan(ctx, s.r, lineCh); err != nil && ctx.Err() == nil {
			s.setError(err)
			sendErr(errCh, fmt.Errorf("reading %s: %w", s.name, err))
		}
	}()
	return nil
}

// Stop cancels reading and closes the reader if it is an io.Closer. A
// reader still blocked in Read after stopTimeout is abandoned.
func (s *ReaderSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if c, ok := s.r.(io.Closer); ok {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
	}
	return nil
}

// sendErr reports err without blocking when nobody is listening.
func sendErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

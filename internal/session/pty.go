// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// ErrNotStarted is returned when sending to a pty source that is not running.
var ErrNotStarted = errors.New("pty source not started")

// PTYSource runs a command under a pseudo-terminal, reads its output as
// session lines and writes trigger commands to its input.
type PTYSource struct {
	sourceBase
	command []string
	env     []string

	ioMu sync.Mutex
	ptmx *os.File
	cmd  *exec.Cmd
	size *pty.Winsize
}

// NewPTYSource creates a source for command. extraEnv is appended to the
// current environment.
func NewPTYSource(command []string, extraEnv ...string) (*PTYSource, error) {
	if len(command) == 0 {
		return nil, errors.New("pty source requires command")
	}
	env := append(os.Environ(), "TERM=xterm-256color")
	env = append(env, extraEnv...)
	return &PTYSource{command: command, env: env}, nil
}

// Name returns the source name.
func (s *PTYSource) Name() string {
	return fmt.Sprintf("pty:%s", strings.Join(s.command, " "))
}

// Start launches the command.
func (s *PTYSource) Start(ctx context.Context, lineCh chan<- string, errCh chan<- error) error {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Env = s.env
	s.ioMu.Lock()
	size := s.size
	s.ioMu.Unlock()
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		cancel()
		s.setError(err)
		return fmt.Errorf("starting %s: %w", s.command[0], err)
	}

	s.ioMu.Lock()
	s.ptmx = ptmx
	s.cmd = cmd
	s.ioMu.Unlock()
	s.cancel = cancel
	s.setConnected()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(lineCh)
		defer s.setDisconnected()

		err := s.scan(ctx, ptmx, lineCh)
		// Reading the master returns EIO once the child has exited.
		if err != nil && !errors.Is(err, syscall.EIO) && ctx.Err() == nil {
			s.setError(err)
			sendErr(errCh, fmt.Errorf("reading pty: %w", err))
		}

		s.ioMu.Lock()
		ptmx.Close()
		s.ptmx = nil
		s.ioMu.Unlock()

		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			s.setError(err)
			sendErr(errCh, fmt.Errorf("command exited: %w", err))
		}
	}()
	return nil
}

// Send writes command followed by a newline to the terminal.
func (s *PTYSource) Send(command string) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	if s.ptmx == nil {
		return ErrNotStarted
	}
	out := command + "\n"
	if s.enc != nil {
		encoded, err := s.enc.NewEncoder().String(out)
		if err != nil {
			return fmt.Errorf("encoding command: %w", err)
		}
		out = encoded
	}
	if _, err := s.ptmx.WriteString(out); err != nil {
		return fmt.Errorf("writing to pty: %w", err)
	}
	return nil
}

// Resize sets the terminal window size. Before Start it sets the size the
// command starts with.
func (s *PTYSource) Resize(rows, cols uint16) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	s.size = &pty.Winsize{Rows: rows, Cols: cols}
	if s.ptmx == nil {
		return nil
	}
	return pty.Setsize(s.ptmx, s.size)
}

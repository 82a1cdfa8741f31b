// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPTYSource_RequiresCommand(t *testing.T) {
	_, err := NewPTYSource(nil)
	assert.Error(t, err)
}

func TestPTYSource_SendBeforeStart(t *testing.T) {
	src, err := NewPTYSource([]string{"cat"})
	require.NoError(t, err)
	assert.ErrorIs(t, src.Send("x"), ErrNotStarted)
	assert.Equal(t, "pty:cat", src.Name())
}

func TestPTYSource_ReadsOutput(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	src, err := NewPTYSource([]string{sh, "-c", "echo hello; echo world"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lineCh := make(chan string, 16)
	errCh := make(chan error, 1)
	if err := src.Start(ctx, lineCh, errCh); err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	defer src.Stop()

	var lines []string
	for line := range lineCh {
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"hello", "world"}, lines)
	assert.ErrorIs(t, src.Send("late"), ErrNotStarted)
}

func TestPTYSource_Resize(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	src, err := NewPTYSource([]string{sh, "-c", "stty size"})
	require.NoError(t, err)
	require.NoError(t, src.Resize(40, 100))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lineCh := make(chan string, 4)
	if err := src.Start(ctx, lineCh, make(chan error, 1)); err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	defer src.Stop()

	var lines []string
	for line := range lineCh {
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"40 100"}, lines)
}

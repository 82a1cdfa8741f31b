// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changes struct {
	mu    sync.Mutex
	paths []string
}

func (c *changes) record(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *changes) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func newTestWatcher(t *testing.T) *FileWatcher {
	t.Helper()
	w, err := New(50*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFileWatcher_WatchAndUnwatch(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "triggers.hjson")
	writeFile(t, path, "[]")

	require.NoError(t, w.Watch("triggers", []string{path}, func(string) {}))
	assert.Equal(t, []string{"triggers"}, w.Watching())

	require.NoError(t, w.Unwatch("triggers"))
	assert.Empty(t, w.Watching())
	assert.Error(t, w.Unwatch("triggers"))
}

func TestFileWatcher_WatchErrors(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.lua")
	writeFile(t, path, "")

	assert.Error(t, w.Watch("nil", []string{path}, nil))

	// A missing directory cannot be watched
	err := w.Watch("missing", []string{"/nonexistent/dir/triggers.hjson"}, func(string) {})
	assert.Error(t, err)
	assert.NotContains(t, w.Watching(), "missing")

	// A path belongs to one group
	require.NoError(t, w.Watch("scripts", []string{path}, func(string) {}))
	assert.Error(t, w.Watch("other", []string{path}, func(string) {}))
}

func TestFileWatcher_FileNotYetCreated(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "triggers.hjson")

	var got changes
	require.NoError(t, w.Watch("triggers", []string{path}, got.record))

	writeFile(t, path, "[]")
	assert.Eventually(t, func() bool { return len(got.list()) == 1 }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, path, got.list()[0])
}

func TestFileWatcher_Write_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	w := newTestWatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "triggers.hjson")
	other := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "[]")

	var got changes
	require.NoError(t, w.Watch("triggers", []string{path}, got.record))

	// Files in the same directory that are not watched are ignored
	writeFile(t, other, "ignored")
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, got.list())

	writeFile(t, path, `[{ name: "a" }]`)
	assert.Eventually(t, func() bool { return len(got.list()) == 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_AtomicRename_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	w := newTestWatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "triggers.hjson")
	tmp := filepath.Join(dir, "triggers.hjson.tmp")
	writeFile(t, path, "[]")

	var got changes
	require.NoError(t, w.Watch("triggers", []string{path}, got.record))

	writeFile(t, tmp, `[{ name: "b" }]`)
	require.NoError(t, os.Rename(tmp, path))

	assert.Eventually(t, func() bool { return len(got.list()) >= 1 }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, path, got.list()[0])
}

func TestFileWatcher_RapidChanges_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	w := newTestWatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "init.lua")
	writeFile(t, path, "")

	var got changes
	require.NoError(t, w.Watch("scripts", []string{path}, got.record))

	for i := 0; i < 10; i++ {
		writeFile(t, path, "x = "+string(rune('0'+i)))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return len(got.list()) == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, got.list(), 1)
}

func TestFileWatcher_Close(t *testing.T) {
	w, err := New(50*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	assert.ErrorIs(t, w.Watch("triggers", []string{"x"}, func(string) {}), ErrClosed)
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher reloads definition and script files when they change on
// disk.
package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ErrClosed is returned when watching on a closed watcher.
var ErrClosed = errors.New("watcher is closed")

// ChangeFunc is called with the path of a watched file after it changed and
// the debounce period passed.
type ChangeFunc func(path string)

// FileWatcher watches named groups of files. Parent directories are watched
// rather than the files themselves so editors that save by renaming a temp
// file over the original are still seen.
type FileWatcher struct {
	mu        sync.RWMutex
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	groups    map[string][]string   // group -> watched paths
	handlers  map[string]ChangeFunc // group -> handler
	pathGroup map[string]string     // path -> group
	dirs      map[string]int        // dir -> watch count
	log       zerolog.Logger
	closed    bool
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// New creates a file watcher that waits for debounce of quiet before calling
// a group's handler.
func New(debounce time.Duration, log zerolog.Logger) (*FileWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &FileWatcher{
		watcher:   fsWatcher,
		debouncer: NewDebouncer(debounce),
		groups:    make(map[string][]string),
		handlers:  make(map[string]ChangeFunc),
		pathGroup: make(map[string]string),
		dirs:      make(map[string]int),
		log:       log.With().Str("component", "watcher").Logger(),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Watch registers paths under group, replacing any earlier registration of
// the group. fn runs on its own goroutine.
func (w *FileWatcher) Watch(group string, paths []string, fn ChangeFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if fn == nil {
		return fmt.Errorf("group %s: nil handler", group)
	}

	w.unwatchLocked(group)

	var watched []string
	var errs []error
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		if other, taken := w.pathGroup[abs]; taken {
			errs = append(errs, fmt.Errorf("%s already watched by %s", abs, other))
			continue
		}
		if err := w.addDir(filepath.Dir(abs)); err != nil {
			errs = append(errs, fmt.Errorf("watch %s: %w", abs, err))
			continue
		}
		watched = append(watched, abs)
		w.pathGroup[abs] = group
	}

	if len(watched) > 0 {
		w.groups[group] = watched
		w.handlers[group] = fn
		w.log.Debug().Str("group", group).Strs("paths", watched).Msg("Watching files")
	}
	return errors.Join(errs...)
}

// Unwatch stops watching the files of group.
func (w *FileWatcher) Unwatch(group string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.groups[group]; !ok {
		return fmt.Errorf("group %s not being watched", group)
	}
	w.unwatchLocked(group)
	w.debouncer.Cancel(group)
	return nil
}

func (w *FileWatcher) unwatchLocked(group string) {
	for _, path := range w.groups[group] {
		w.removeDir(filepath.Dir(path))
		delete(w.pathGroup, path)
	}
	delete(w.groups, group)
	delete(w.handlers, group)
}

// Watching returns the watched groups in name order.
func (w *FileWatcher) Watching() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make([]string, 0, len(w.groups))
	for group := range w.groups {
		result = append(result, group)
	}
	sort.Strings(result)
	return result
}

// Close stops the watcher and releases resources. Pending changes are
// discarded.
func (w *FileWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debouncer.Stop()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *FileWatcher) addDir(dir string) error {
	w.dirs[dir]++
	if w.dirs[dir] == 1 {
		if err := w.watcher.Add(dir); err != nil {
			delete(w.dirs, dir)
			return err
		}
	}
	return nil
}

func (w *FileWatcher) removeDir(dir string) {
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		w.watcher.Remove(dir)
		delete(w.dirs, dir)
	}
}

func (w *FileWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("File watch error")
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	// Removal or a rename away is followed by a Create when the file is
	// replaced; react to that instead.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	path := filepath.Clean(event.Name)
	w.mu.RLock()
	group, ok := w.pathGroup[path]
	fn := w.handlers[group]
	w.mu.RUnlock()
	if !ok {
		return
	}

	w.debouncer.Debounce(group, func() {
		if _, err := os.Stat(path); err != nil {
			w.log.Debug().Err(err).Str("path", path).Msg("Changed file is gone")
			return
		}
		w.log.Info().Str("group", group).Str("path", path).Msg("File changed")
		fn(path)
	})
}

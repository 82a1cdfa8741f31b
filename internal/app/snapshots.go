// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wingedpig/lattice/internal/events"
	"github.com/wingedpig/lattice/internal/store"
	"github.com/wingedpig/lattice/internal/trigger"
)

// snapshotService saves and restores the running profile's tree. It
// implements handlers.SnapshotService.
type snapshotService struct {
	app *App
}

func (s *snapshotService) profile() string {
	return s.app.config.Store.Profile
}

// List returns the profile's snapshots, newest first.
func (s *snapshotService) List(ctx context.Context) ([]store.Snapshot, error) {
	return s.app.store.List(ctx, s.profile())
}

// Save serializes the live tree on the session goroutine and stores it.
func (s *snapshotService) Save(ctx context.Context) (store.Snapshot, error) {
	var (
		buf   bytes.Buffer
		roots int
	)
	err := s.app.session.Do(ctx, func(u *trigger.Unit) error {
		roots = persistentRoots(u)
		return u.Serialize(&buf)
	})
	if err != nil {
		return store.Snapshot{}, err
	}
	return s.store(ctx, buf.Bytes(), roots)
}

// save serializes u directly. Only valid once the session has stopped.
func (s *snapshotService) save(ctx context.Context, u *trigger.Unit) (store.Snapshot, error) {
	var buf bytes.Buffer
	if err := u.Serialize(&buf); err != nil {
		return store.Snapshot{}, err
	}
	return s.store(ctx, buf.Bytes(), persistentRoots(u))
}

func (s *snapshotService) store(ctx context.Context, data []byte, roots int) (store.Snapshot, error) {
	snap, err := s.app.store.Save(ctx, s.profile(), data, roots)
	if err != nil {
		return store.Snapshot{}, err
	}

	if keep := s.app.config.Store.Keep; keep > 0 {
		pruned, err := s.app.store.Prune(ctx, s.profile(), keep)
		if err != nil {
			s.app.log.Warn().Err(err).Msg("prune snapshots")
		} else if pruned > 0 {
			s.app.log.Debug().Int64("pruned", pruned).Msg("pruned snapshots")
		}
	}

	s.app.log.Info().Str("snapshot", snap.ID).Int("roots", roots).Int("size", snap.Size).Msg("snapshot saved")
	s.app.publish(events.EventSnapshotSaved, map[string]interface{}{
		"id":    snap.ID,
		"roots": roots,
		"size":  snap.Size,
	})
	return snap, nil
}

// Restore replaces the live tree with snapshot id.
func (s *snapshotService) Restore(ctx context.Context, id string) (store.Snapshot, error) {
	snap, err := s.app.store.Get(ctx, id)
	if err != nil {
		return store.Snapshot{}, err
	}
	if snap.Profile != s.profile() {
		return store.Snapshot{}, fmt.Errorf("%w: %s belongs to profile %q", store.ErrNotFound, id, snap.Profile)
	}
	return snap, s.restore(ctx, snap)
}

func (s *snapshotService) restoreLatest(ctx context.Context) (store.Snapshot, error) {
	snap, err := s.app.store.Latest(ctx, s.profile())
	if err != nil {
		return store.Snapshot{}, err
	}
	return snap, s.restore(ctx, snap)
}

func (s *snapshotService) restore(ctx context.Context, snap store.Snapshot) error {
	err := s.app.session.Do(ctx, func(u *trigger.Unit) error {
		u.Clear()
		if err := u.Restore(snap.Reader()); err != nil {
			return fmt.Errorf("restore snapshot %s: %w", snap.ID, err)
		}
		u.Compile()
		return nil
	})
	if err != nil {
		return err
	}
	s.app.publish(events.EventSnapshotRestored, map[string]interface{}{
		"id":    snap.ID,
		"roots": snap.Roots,
	})
	return nil
}

func persistentRoots(u *trigger.Unit) int {
	n := 0
	for _, r := range u.Roots() {
		if !r.IsTemporary() {
			n++
		}
	}
	return n
}

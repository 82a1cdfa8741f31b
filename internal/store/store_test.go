// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/lattice/internal/trigger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "lattice.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Save(ctx, "main", []byte{1}, 1)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	list, err := s.List(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSaveAndLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Latest(ctx, "main")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.Save(ctx, "main", []byte("first"), 1)
	require.NoError(t, err)
	second, err := s.Save(ctx, "main", []byte("second"), 2)
	require.NoError(t, err)
	_, err = s.Save(ctx, "alt", []byte("other"), 3)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 6, second.Size)

	latest, err := s.Latest(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, []byte("second"), latest.Data)
	assert.Equal(t, 2, latest.Roots)
	assert.WithinDuration(t, second.CreatedAt, latest.CreatedAt, 0)

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got.Data)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Save(ctx, "", []byte("x"), 0)
	assert.Error(t, err)
}

func TestListAndProfiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		snap, err := s.Save(ctx, "main", []byte{byte(i)}, i)
		require.NoError(t, err)
		ids = append(ids, snap.ID)
	}
	_, err := s.Save(ctx, "alt", []byte{9}, 1)
	require.NoError(t, err)

	list, err := s.List(ctx, "main")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID, "newest first")
	assert.Equal(t, ids[0], list[2].ID)
	assert.Nil(t, list[0].Data)

	profiles, err := s.Profiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alt", "main"}, profiles)
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var last string
	for i := 0; i < 5; i++ {
		snap, err := s.Save(ctx, "main", []byte{byte(i)}, 1)
		require.NoError(t, err)
		last = snap.ID
	}
	_, err := s.Save(ctx, "alt", []byte{1}, 1)
	require.NoError(t, err)

	removed, err := s.Prune(ctx, "main", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	removed, err = s.Prune(ctx, "main", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	list, err := s.List(ctx, "main")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, last, list[0].ID)

	alt, err := s.List(ctx, "alt")
	require.NoError(t, err)
	assert.Len(t, alt, 1, "other profiles are untouched")
}

type nopScripts struct{}

func (nopScripts) Compile(int64, string) error        { return nil }
func (nopScripts) Call(int64, []string, string) error { return nil }
func (nopScripts) Run(string) error                   { return nil }
func (nopScripts) SetCaptureGroups([]string, []int)   {}
func (nopScripts) ClearCaptureGroups()                {}
func (nopScripts) Release(int64)                      {}

func newUnit() *trigger.Unit {
	return trigger.NewUnit(trigger.Env{
		Scripts: nopScripts{},
		Conn:    trigger.NopSender{},
		Log:     zerolog.Nop(),
	})
}

func TestSnapshot_UnitRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	src := newUnit()
	require.NoError(t, src.Import([]trigger.Definition{
		{Name: "prompt", Patterns: []trigger.PatternDefinition{{Text: "HP:"}}, Script: "echo('hp')"},
		{Name: "tells", Patterns: []trigger.PatternDefinition{{Text: "^(\\w+) tells you", Kind: "regex"}}},
	}))

	var buf bytes.Buffer
	require.NoError(t, src.Serialize(&buf))
	_, err := s.Save(ctx, "main", buf.Bytes(), len(src.Roots()))
	require.NoError(t, err)

	latest, err := s.Latest(ctx, "main")
	require.NoError(t, err)

	dst := newUnit()
	require.NoError(t, dst.Restore(latest.Reader()))
	require.Len(t, dst.Roots(), 2)
	assert.Equal(t, "prompt", dst.Roots()[0].Name())
	assert.Equal(t, "echo('hp')", dst.Roots()[0].Script())
	texts, kinds := dst.Roots()[1].Patterns()
	assert.Equal(t, []string{"^(\\w+) tells you"}, texts)
	assert.Equal(t, []trigger.Kind{trigger.KindRegex}, kinds)
}

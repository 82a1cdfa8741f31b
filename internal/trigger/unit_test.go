// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit_RootsFireInRegistrationOrder(t *testing.T) {
	u, host, _ := newTestUnit(t)
	addTrigger(t, u, nil, "b", KindSubstring, "x")
	addTrigger(t, u, nil, "a", KindSubstring, "x")
	addTrigger(t, u, nil, "c", KindSubstring, "x")

	assert.True(t, u.ProcessLine("x"))
	assert.Equal(t, []string{"b", "a", "c"}, host.callNames())

	assert.False(t, u.ProcessLine("y"))
}

func TestUnit_NewIDIsMonotonic(t *testing.T) {
	u, _, _ := newTestUnit(t)
	a := u.NewTrigger(nil, "a")
	b := u.NewTrigger(a, "b")
	c := u.NewTrigger(nil, "c")

	assert.Equal(t, int64(1), a.ID())
	assert.Equal(t, int64(2), b.ID())
	assert.Equal(t, int64(3), c.ID())
	assert.Equal(t, []*Node{a, c}, u.Roots())
}

func TestUnit_RegisterDuplicateID(t *testing.T) {
	u, _, _ := newTestUnit(t)
	a := u.NewTrigger(nil, "a")

	imposter := NewNode(nil, u.Env())
	imposter.id = a.ID()
	assert.False(t, u.RegisterTrigger(imposter))
	assert.Equal(t, []*Node{a}, u.Roots())

	assert.True(t, u.RegisterTrigger(a))
	assert.Len(t, u.Roots(), 1)
}

func TestUnit_AddRoot(t *testing.T) {
	u, _, _ := newTestUnit(t)
	a := u.NewTrigger(nil, "a")
	b := u.NewTrigger(a, "b")

	u.AddRoot(b)
	assert.Nil(t, b.Parent())
	assert.Empty(t, a.Children())
	assert.Equal(t, []*Node{a, b}, u.Roots())
	assert.Equal(t, 2, u.Len())
}

func TestUnit_Remove(t *testing.T) {
	u, _, _ := newTestUnit(t)
	a := u.NewTrigger(nil, "a")

	require.NoError(t, u.Remove(a.ID()))
	assert.Zero(t, u.Len())
	assert.ErrorIs(t, u.Remove(a.ID()), ErrNotFound)
}

func TestUnit_TempTrigger(t *testing.T) {
	u, host, _ := newTestUnit(t)

	id, err := u.TempTrigger(`(\d+) gold`, KindRegex, "echo('gold')")
	require.NoError(t, err)

	n, ok := u.Get(id)
	require.True(t, ok)
	assert.True(t, n.IsTemporary())
	assert.Equal(t, strconv.FormatInt(id, 10), n.Name())

	assert.True(t, u.ProcessLine("10 gold"))
	assert.True(t, u.ProcessLine("20 gold"))
	assert.Equal(t, []string{"echo('gold')", "echo('gold')"}, host.runs)

	_, err = u.TempTrigger("", KindSubstring, "x")
	assert.ErrorIs(t, err, ErrEmptyPattern)
}

func TestUnit_TempLineTrigger(t *testing.T) {
	u, host, _ := newTestUnit(t)
	id := u.TempLineTrigger(1, 1, "echo('later')")

	u.ProcessLine("one")
	_, ok := u.Get(id)
	assert.True(t, ok)
	assert.Empty(t, host.runs)

	u.ProcessLine("two")
	assert.Equal(t, []string{"echo('later')"}, host.runs)
	_, ok = u.Get(id)
	assert.False(t, ok)
	assert.Empty(t, u.Roots())

	u.ProcessLine("three")
	assert.Len(t, host.runs, 1)
}

func TestUnit_KillTrigger(t *testing.T) {
	u, _, _ := newTestUnit(t)
	perm := u.NewTrigger(nil, "perm")
	id, err := u.TempTrigger("x", KindSubstring, "")
	require.NoError(t, err)

	assert.False(t, u.KillTrigger(perm.ID()))
	assert.True(t, u.KillTrigger(id))
	assert.False(t, u.KillTrigger(id))
	assert.Equal(t, []*Node{perm}, u.Roots())
}

func TestUnit_TriggerCreatedDuringLineWaitsForNextLine(t *testing.T) {
	u, host, _ := newTestUnit(t)
	host.onRun = func(body string) {
		if body == "spawn" {
			_, err := u.TempTrigger("ping", KindSubstring, "inner")
			require.NoError(t, err)
		}
	}
	_, err := u.TempTrigger("ping", KindSubstring, "spawn")
	require.NoError(t, err)

	u.ProcessLine("ping")
	assert.Equal(t, []string{"spawn"}, host.runs)

	u.ProcessLine("ping")
	assert.Equal(t, []string{"spawn", "spawn", "inner"}, host.runs)
}

func boolPtr(v bool) *bool { return &v }

func TestUnit_ImportExport(t *testing.T) {
	u, host, _ := newTestUnit(t)
	defs := []Definition{
		{
			Name: "combat",
			Patterns: []PatternDefinition{
				{Text: "attacks you", Kind: "substring"},
			},
			Children: []Definition{
				{
					Name:     "damage",
					Patterns: []PatternDefinition{{Text: `for (\d+) damage`, Kind: "regex"}},
					Script:   "echo(matches[1])",
					Command:  "flee",
				},
			},
		},
		{
			Name:            "sequence",
			Patterns:        []PatternDefinition{{Text: "a", Kind: "exact"}, {Text: "b*", Kind: "wildcard"}},
			Multiline:       true,
			ConditionWindow: 3,
			Active:          boolPtr(false),
		},
	}

	require.NoError(t, u.Import(defs))
	assert.Equal(t, 3, u.Len())

	roots := u.Roots()
	require.Len(t, roots, 2)
	assert.True(t, roots[0].IsFolder())
	assert.True(t, roots[0].IsFilterChain())
	assert.False(t, roots[1].IsActive())

	u.ProcessLine("the orc attacks you for 12 damage")
	require.Len(t, host.calls, 2)
	assert.Equal(t, "damage", host.calls[1].name)
	assert.Equal(t, []string{"12"}, host.calls[1].captures)

	assert.Equal(t, defs, u.Export())
}

func TestUnit_ImportRejectsUnknownKind(t *testing.T) {
	u, _, _ := newTestUnit(t)
	defs := []Definition{
		{Name: "ok", Patterns: []PatternDefinition{{Text: "a"}}},
		{Name: "bad", Children: []Definition{
			{Name: "inner", Patterns: []PatternDefinition{{Text: "a", Kind: "soundex"}}},
		}},
	}

	assert.Error(t, u.Import(defs))
	assert.Zero(t, u.Len())
}

func TestUnit_Replace(t *testing.T) {
	u, host, _ := newTestUnit(t)
	old := u.NewTrigger(nil, "old")

	require.NoError(t, u.Replace([]Definition{{Name: "new", Patterns: []PatternDefinition{{Text: "n"}}}}))

	roots := u.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "new", roots[0].Name())
	assert.Contains(t, host.released, old.ID())

	assert.Error(t, u.Replace([]Definition{{Name: "bad", Patterns: []PatternDefinition{{Text: "x", Kind: "nope"}}}}))
	assert.Equal(t, "new", u.Roots()[0].Name())
}

func TestUnit_ExportSkipsTemporary(t *testing.T) {
	u, _, _ := newTestUnit(t)
	u.NewTrigger(nil, "keep")
	_, err := u.TempTrigger("x", KindSubstring, "")
	require.NoError(t, err)

	defs := u.Export()
	require.Len(t, defs, 1)
	assert.Equal(t, "keep", defs[0].Name)
	assert.Len(t, u.Info(), 2)
}

func TestUnit_Info(t *testing.T) {
	u, _, _ := newTestUnit(t)
	root := addTrigger(t, u, nil, "root", KindWildcard, "a*")
	addTrigger(t, u, root, "child", KindExact, "b")

	infos := u.Info()
	require.Len(t, infos, 1)
	assert.Equal(t, root.ID(), infos[0].ID)
	assert.Equal(t, []PatternDefinition{{Text: "a*", Kind: "wildcard"}}, infos[0].Patterns)
	assert.True(t, infos[0].NeedsCompile)
	require.Len(t, infos[0].Children, 1)
	assert.Equal(t, "child", infos[0].Children[0].Name)
}

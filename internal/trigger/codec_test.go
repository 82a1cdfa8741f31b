// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_SerializeGolden(t *testing.T) {
	n := NewNode(nil, nil)
	n.SetName("greet")
	n.SetScript("send('hi')")
	require.NoError(t, n.SetPatterns([]string{"hello"}, []Kind{KindSubstring}))

	var buf bytes.Buffer
	require.NoError(t, n.Serialize(&buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "single_node", buf.Bytes())
}

func TestNode_RestoreGolden(t *testing.T) {
	n := NewNode(nil, nil)
	data := mustReadGolden(t, "single_node")

	require.NoError(t, n.Restore(bytes.NewReader(data), false))
	assert.Equal(t, "greet", n.Name())
	assert.Equal(t, "send('hi')", n.Script())
	assert.True(t, n.NeedsCompile())
	assert.True(t, n.IsActive())
	assert.False(t, n.IsFolder())
	texts, kinds := n.Patterns()
	assert.Equal(t, []string{"hello"}, texts)
	assert.Equal(t, []Kind{KindSubstring}, kinds)
}

func TestUnit_SerializeRoundTrip(t *testing.T) {
	src, _, _ := newTestUnit(t)
	root := addTrigger(t, src, nil, "root", KindSubstring, "combat")
	root.SetCommand("north")
	child := addTrigger(t, src, root, "child", KindRegex, `hits (\w+)`)
	child.SetMultiline(true)
	child.SetConditionWindow(4)
	child.SetTriggerType(7)
	child.SetActive(false)
	_, err := src.TempTrigger("temp", KindSubstring, "-- temp")
	require.NoError(t, err)
	require.Equal(t, int64(1), root.ID())
	require.Equal(t, int64(2), child.ID())

	var buf bytes.Buffer
	require.NoError(t, src.Serialize(&buf))

	// Ids already handed out in dst show the persisted ids are not reused.
	dst, _, _ := newTestUnit(t)
	dst.NewID()
	dst.NewID()
	require.NoError(t, dst.Restore(&buf))

	roots := dst.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, 2, dst.Len())

	got := roots[0]
	assert.Equal(t, "root", got.Name())
	assert.Equal(t, int64(3), got.ID())
	assert.True(t, got.IsFolder())
	assert.Empty(t, got.Command())

	require.Len(t, got.Children(), 1)
	gotChild := got.Children()[0]
	assert.Equal(t, int64(4), gotChild.ID())
	assert.Equal(t, got, gotChild.Parent())
	assert.Equal(t, "child", gotChild.Name())
	assert.True(t, gotChild.IsMultiline())
	assert.Equal(t, 4, gotChild.ConditionWindow())
	assert.Equal(t, int32(7), gotChild.TriggerType())
	assert.False(t, gotChild.IsActive())
	texts, kinds := gotChild.Patterns()
	assert.Equal(t, []string{`hits (\w+)`}, texts)
	assert.Equal(t, []Kind{KindRegex}, kinds)

	registered, ok := dst.Get(4)
	require.True(t, ok)
	assert.Equal(t, gotChild, registered)
}

func TestUnit_RestoreTruncated(t *testing.T) {
	src, _, _ := newTestUnit(t)
	addTrigger(t, src, nil, "first", KindSubstring, "a")
	addTrigger(t, src, nil, "second", KindSubstring, "b")

	var buf bytes.Buffer
	require.NoError(t, src.Serialize(&buf))
	data := buf.Bytes()[:buf.Len()-5]

	dst, host, _ := newTestUnit(t)
	err := dst.Restore(bytes.NewReader(data))
	require.Error(t, err)

	roots := dst.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "first", roots[0].Name())
	assert.Equal(t, 1, dst.Len())
	assert.Len(t, host.released, 1)
}

func TestUnit_RestoreTruncatedChildKeepsSiblings(t *testing.T) {
	src, _, _ := newTestUnit(t)
	root := addTrigger(t, src, nil, "root", KindSubstring, "combat")
	addTrigger(t, src, root, "c1", KindSubstring, "hits")
	addTrigger(t, src, root, "c2", KindSubstring, "misses")

	var buf bytes.Buffer
	require.NoError(t, src.Serialize(&buf))
	data := buf.Bytes()[:buf.Len()-5]

	dst, host, _ := newTestUnit(t)
	err := dst.Restore(bytes.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"c2"`)

	roots := dst.Roots()
	require.Len(t, roots, 1)
	got := roots[0]
	assert.Equal(t, "root", got.Name())
	require.Len(t, got.Children(), 1)
	c1 := got.Children()[0]
	assert.Equal(t, "c1", c1.Name())
	assert.Equal(t, 2, dst.Len())

	registered, ok := dst.Get(c1.ID())
	require.True(t, ok)
	assert.Equal(t, c1, registered)

	// The chain still gates its surviving child.
	assert.False(t, dst.ProcessLine("he hits you"))
	assert.True(t, dst.ProcessLine("combat: he hits you"))
	assert.Equal(t, []string{"root", "c1"}, host.callNames())
}

func TestUnit_RestoreCorruptLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int64(1)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(0xFFFFFFFF)))

	u, _, _ := newTestUnit(t)
	err := u.Restore(&buf)
	assert.ErrorIs(t, err, ErrCorruptStream)
	assert.Empty(t, u.Roots())
}

func TestUnit_RestoreNegativeRootCount(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int64(-3)))

	u, _, _ := newTestUnit(t)
	assert.ErrorIs(t, u.Restore(&buf), ErrCorruptStream)
}

func mustReadGolden(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name+".golden"))
	require.NoError(t, err)
	return data
}

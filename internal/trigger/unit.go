// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrNotFound is returned when no trigger has the requested id.
var ErrNotFound = errors.New("trigger not found")

// ErrEmptyPattern is returned when a temporary trigger has no pattern.
var ErrEmptyPattern = errors.New("empty trigger pattern")

// Unit owns a trigger forest: it issues ids, tracks every registered node
// and feeds lines to the roots in registration order.
//
// The registry maps are safe for concurrent use. Matching and tree edits
// are not, and must be serialized by the caller.
type Unit struct {
	env    *Env
	nextID atomic.Int64

	mu    sync.RWMutex
	roots []*Node
	nodes map[int64]*Node
}

// NewUnit creates an empty unit. env.Registry is replaced by the unit.
func NewUnit(env Env) *Unit {
	u := &Unit{nodes: make(map[int64]*Node)}
	u.env = &env
	u.env.Registry = u
	return u
}

// Env returns the environment shared by the unit's nodes.
func (u *Unit) Env() *Env { return u.env }

// NewID issues a fresh trigger id.
func (u *Unit) NewID() int64 {
	return u.nextID.Add(1)
}

// RegisterTrigger records n; a parentless node becomes the last root.
func (u *Unit) RegisterTrigger(n *Node) bool {
	if n == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if existing, ok := u.nodes[n.id]; ok && existing != n {
		u.env.Log.Error().
			Int64("trigger_id", n.id).
			Str("trigger", n.name).
			Msg("trigger id already registered")
		return false
	}
	u.nodes[n.id] = n
	if n.parent == nil && !u.isRoot(n) {
		u.roots = append(u.roots, n)
	}
	return true
}

// UnregisterTrigger forgets n.
func (u *Unit) UnregisterTrigger(n *Node) {
	if n == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if existing, ok := u.nodes[n.id]; ok && existing == n {
		delete(u.nodes, n.id)
	}
	for i, r := range u.roots {
		if r == n {
			u.roots = append(u.roots[:i:i], u.roots[i+1:]...)
			break
		}
	}
}

func (u *Unit) isRoot(n *Node) bool {
	for _, r := range u.roots {
		if r == n {
			return true
		}
	}
	return false
}

// Roots returns the root nodes in registration order.
func (u *Unit) Roots() []*Node {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]*Node, len(u.roots))
	copy(out, u.roots)
	return out
}

// Get returns the registered node with the given id.
func (u *Unit) Get(id int64) (*Node, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	n, ok := u.nodes[id]
	return n, ok
}

// Len returns the number of registered nodes.
func (u *Unit) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.nodes)
}

// FindByName returns every node called name, depth-first from the roots.
func (u *Unit) FindByName(name string) []*Node {
	var out []*Node
	for _, r := range u.Roots() {
		r.Walk(func(n *Node) {
			if n.name == name {
				out = append(out, n)
			}
		})
	}
	return out
}

// NewTrigger creates and registers a node under parent (nil for a root).
func (u *Unit) NewTrigger(parent *Node, name string) *Node {
	n := NewNode(parent, u.env)
	n.SetName(name)
	n.Register()
	return n
}

// AddRoot detaches n from its parent, if any, and makes it the last root.
func (u *Unit) AddRoot(n *Node) {
	if n.parent != nil {
		u.UnregisterTrigger(n)
		n.parent.detach(n)
		n.parent = nil
	}
	u.RegisterTrigger(n)
}

// Remove destroys the trigger with the given id and its subtree.
func (u *Unit) Remove(id int64) error {
	n, ok := u.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	n.Remove()
	return nil
}

// Clear destroys every trigger.
func (u *Unit) Clear() {
	for _, r := range u.Roots() {
		r.Remove()
	}
}

// ProcessLine matches line against every root in order and then removes
// spent temporary line triggers. It reports whether any trigger was
// satisfied.
func (u *Unit) ProcessLine(line string) bool {
	matched := false
	for _, r := range u.Roots() {
		if r.Match(line) {
			matched = true
		}
	}
	for _, r := range u.Roots() {
		if r.temporary && r.LineDeltaSpent() {
			r.Remove()
		}
	}
	return matched
}

// Compile compiles every stale callback.
func (u *Unit) Compile() {
	for _, r := range u.Roots() {
		r.Compile()
	}
}

// EnableByName activates every trigger called name.
func (u *Unit) EnableByName(name string) {
	for _, r := range u.Roots() {
		r.EnableByName(name)
	}
}

// DisableByName deactivates every trigger called name.
func (u *Unit) DisableByName(name string) {
	for _, r := range u.Roots() {
		r.DisableByName(name)
	}
}

// KillByName deactivates every trigger called name.
func (u *Unit) KillByName(name string) {
	for _, r := range u.Roots() {
		r.KillByName(name)
	}
}

// TempTrigger registers a one-shot-script trigger on a single pattern and
// returns its id.
func (u *Unit) TempTrigger(pattern string, kind Kind, script string) (int64, error) {
	if pattern == "" {
		return 0, ErrEmptyPattern
	}
	n := NewNode(nil, u.env)
	n.SetName(strconv.FormatInt(n.id, 10))
	n.SetTemporary(true)
	if err := n.SetPatterns([]string{pattern}, []Kind{kind}); err != nil {
		return 0, err
	}
	n.SetScript(script)
	n.Register()
	return n.id, nil
}

// TempLineTrigger registers a countdown trigger that skips startDelay lines
// and fires once on the fireAfter-th line after that. It is removed once
// spent.
func (u *Unit) TempLineTrigger(startDelay, fireAfter int, script string) int64 {
	n := NewNode(nil, u.env)
	n.SetName(strconv.FormatInt(n.id, 10))
	n.SetTemporary(true)
	n.SetLineDelta(startDelay, fireAfter)
	n.SetScript(script)
	n.Register()
	return n.id
}

// KillTrigger removes a temporary trigger. It reports false when id is not
// a temporary trigger.
func (u *Unit) KillTrigger(id int64) bool {
	n, ok := u.Get(id)
	if !ok || !n.temporary {
		return false
	}
	n.Remove()
	return true
}

// Import builds and registers triggers from definitions, appending them as
// roots. Definitions are checked before any node is created.
func (u *Unit) Import(defs []Definition) error {
	for _, def := range defs {
		if err := checkDefinition(def); err != nil {
			return err
		}
	}
	for _, def := range defs {
		u.build(nil, def)
	}
	return nil
}

// Replace swaps the whole forest for the given definitions.
func (u *Unit) Replace(defs []Definition) error {
	for _, def := range defs {
		if err := checkDefinition(def); err != nil {
			return err
		}
	}
	u.Clear()
	for _, def := range defs {
		u.build(nil, def)
	}
	return nil
}

func checkDefinition(def Definition) error {
	if _, _, err := def.Split(); err != nil {
		return err
	}
	for _, child := range def.Children {
		if err := checkDefinition(child); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unit) build(parent *Node, def Definition) *Node {
	n := NewNode(parent, u.env)
	n.SetName(def.Name)
	texts, kinds, _ := def.Split()
	n.SetPatterns(texts, kinds)
	n.SetScript(def.Script)
	n.SetCommand(def.Command)
	n.SetMultiline(def.Multiline)
	n.SetConditionWindow(def.ConditionWindow)
	n.SetActive(def.IsActive())
	n.SetFolder(len(def.Children) > 0)
	n.Register()
	for _, child := range def.Children {
		u.build(n, child)
	}
	return n
}

// Export returns the definitions of every non-temporary root.
func (u *Unit) Export() []Definition {
	var defs []Definition
	for _, r := range u.Roots() {
		if r.temporary {
			continue
		}
		defs = append(defs, r.Definition())
	}
	return defs
}

// Info returns views of every root.
func (u *Unit) Info() []Info {
	roots := u.Roots()
	out := make([]Info, 0, len(roots))
	for _, r := range roots {
		out = append(out, r.Info())
	}
	return out
}

// Serialize writes every non-temporary root, preceded by their count.
func (u *Unit) Serialize(w io.Writer) error {
	var persist []*Node
	for _, r := range u.Roots() {
		if !r.temporary {
			persist = append(persist, r)
		}
	}

	enc := newEncoder(w)
	enc.int64(int64(len(persist)))
	for _, r := range persist {
		r.encode(enc)
	}
	return enc.err
}

// Restore reads a forest written by Serialize and registers every node.
// Everything read before an error stays registered, including a root
// whose subtree was cut short.
func (u *Unit) Restore(r io.Reader) error {
	dec := newDecoder(r)
	count := dec.int64()
	if dec.err != nil {
		return fmt.Errorf("read root count: %w", dec.err)
	}
	if count < 0 || count > maxChildren {
		return fmt.Errorf("%w: %d roots", ErrCorruptStream, count)
	}
	for i := int64(0); i < count; i++ {
		root := NewNode(nil, u.env)
		read, err := root.decode(dec, true)
		if !read {
			root.Remove()
			return err
		}
		root.Register()
		if err != nil {
			return err
		}
	}
	return nil
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"errors"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog"
)

// ErrPatternMismatch is returned when pattern texts and kinds differ in length.
var ErrPatternMismatch = errors.New("pattern and kind lists differ in length")

// ErrCycle is returned when attaching a node would make the tree cyclic.
var ErrCycle = errors.New("trigger tree would contain a cycle")

// Node is one rule of the trigger tree. A node with patterns and children is
// a trigger chain: its children only see lines the node itself matched. A
// node without patterns is a structural folder that passes every line on.
//
// Node is not safe for concurrent use, except that SetPatterns and Serialize
// may run concurrently with Match.
type Node struct {
	// mu guards the pattern set and is held while serializing.
	mu       sync.Mutex
	patterns []string
	kinds    []Kind
	compiled map[int]*regexp2.Regexp

	env      *Env
	id       int64
	name     string
	parent   *Node
	children []*Node

	active      bool
	folder      bool
	temporary   bool
	multiline   bool
	triggerType int32

	lineTrigger bool
	startDelta  int
	lineDelta   int

	window   int
	attempts []matchState

	script       string
	command      string
	needsCompile bool
}

// NewNode creates an active node with a fresh id and appends it to parent's
// children when parent is non-nil.
func NewNode(parent *Node, env *Env) *Node {
	if env == nil {
		env = &Env{Log: zerolog.Nop()}
	}
	n := &Node{
		env:          env,
		parent:       parent,
		active:       true,
		needsCompile: true,
		compiled:     make(map[int]*regexp2.Regexp),
	}
	if env.Registry != nil {
		n.id = env.Registry.NewID()
	}
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	return n
}

// ID returns the registry-issued id.
func (n *Node) ID() int64 { return n.id }

// Name returns the display name.
func (n *Node) Name() string { return n.name }

// SetName sets the display name.
func (n *Node) SetName(name string) { n.name = name }

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the ordered child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// HasChildren reports whether the node has any children.
func (n *Node) HasChildren() bool { return len(n.children) > 0 }

// IsFilterChain reports whether the node gates its children with patterns.
func (n *Node) IsFilterChain() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.patterns) > 0 && len(n.children) > 0
}

// IsActive reports whether the node takes part in matching.
func (n *Node) IsActive() bool { return n.active }

// SetActive enables or disables the node and its subtree.
func (n *Node) SetActive(active bool) { n.active = active }

// IsFolder reports whether the node is structural.
func (n *Node) IsFolder() bool { return n.folder }

// SetFolder marks the node structural.
func (n *Node) SetFolder(folder bool) { n.folder = folder }

// IsTemporary reports whether the node was created at runtime by a script.
func (n *Node) IsTemporary() bool { return n.temporary }

// SetTemporary sets the temporary flag.
func (n *Node) SetTemporary(temp bool) { n.temporary = temp }

// IsMultiline reports whether every pattern must match, in order, within
// the condition window.
func (n *Node) IsMultiline() bool { return n.multiline }

// TriggerType returns the opaque type tag kept for persistence.
func (n *Node) TriggerType() int32 { return n.triggerType }

// SetTriggerType sets the opaque type tag.
func (n *Node) SetTriggerType(t int32) { n.triggerType = t }

// ConditionWindow returns the multiline window in lines.
func (n *Node) ConditionWindow() int { return n.window }

// SetConditionWindow sets the multiline window in lines.
func (n *Node) SetConditionWindow(lines int) { n.window = lines }

// Command returns the text sent to the session when the node fires.
func (n *Node) Command() string { return n.command }

// SetCommand sets the text sent on firing.
func (n *Node) SetCommand(cmd string) { n.command = cmd }

// Script returns the Lua body run on firing.
func (n *Node) Script() string { return n.script }

// NeedsCompile reports whether the script changed since it last compiled.
func (n *Node) NeedsCompile() bool { return n.needsCompile }

// SetMultiline switches multiline mode and discards in-flight attempts.
func (n *Node) SetMultiline(multiline bool) {
	n.multiline = multiline
	n.attempts = nil
}

// SetScript replaces the script body and marks the callback stale.
func (n *Node) SetScript(script string) {
	n.script = script
	n.needsCompile = true
}

// SetLineDelta turns the node into a countdown trigger: it ignores
// startDelay lines, then fires once on the fireAfter-th line after that.
func (n *Node) SetLineDelta(startDelay, fireAfter int) {
	n.lineTrigger = true
	n.startDelta = startDelay
	n.lineDelta = fireAfter
}

// IsLineTrigger reports whether the node is a countdown trigger.
func (n *Node) IsLineTrigger() bool { return n.lineTrigger }

// LineDeltaSpent reports whether a countdown trigger has nothing left to do.
func (n *Node) LineDeltaSpent() bool {
	return n.lineTrigger && n.startDelta <= 0 && n.lineDelta <= 0
}

// LiveAttempts returns the number of in-flight multiline attempts.
func (n *Node) LiveAttempts() int { return len(n.attempts) }

// Patterns returns copies of the pattern texts and kinds.
func (n *Node) Patterns() ([]string, []Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	texts := make([]string, len(n.patterns))
	copy(texts, n.patterns)
	kinds := make([]Kind, len(n.kinds))
	copy(kinds, n.kinds)
	return texts, kinds
}

// SetPatterns replaces the pattern set and rebuilds the compiled cache.
// Empty texts are skipped. On a length mismatch the set is left empty.
// Patterns that fail to compile are kept but never match.
func (n *Node) SetPatterns(patterns []string, kinds []Kind) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.patterns = nil
	n.kinds = nil
	n.compiled = make(map[int]*regexp2.Regexp)

	if len(patterns) != len(kinds) {
		n.env.Log.Error().
			Int64("trigger_id", n.id).
			Str("trigger", n.name).
			Int("patterns", len(patterns)).
			Int("kinds", len(kinds)).
			Msg("pattern list and kind list differ in length")
		return ErrPatternMismatch
	}

	texts := make([]string, 0, len(patterns))
	ks := make([]Kind, 0, len(kinds))
	compiled := make(map[int]*regexp2.Regexp)
	for i, text := range patterns {
		if text == "" {
			continue
		}
		idx := len(texts)
		if kinds[i].needsCompile() {
			re, err := compilePattern(text, kinds[i], n.env.RegexTimeout)
			if err != nil {
				n.env.Log.Warn().Err(err).
					Int64("trigger_id", n.id).
					Str("trigger", n.name).
					Str("pattern", text).
					Msg("pattern does not compile")
			} else {
				compiled[idx] = re
			}
		}
		texts = append(texts, text)
		ks = append(ks, kinds[i])
	}
	n.patterns = texts
	n.kinds = ks
	n.compiled = compiled
	return nil
}

func (n *Node) snapshot() ([]string, []Kind, map[int]*regexp2.Regexp) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.patterns, n.kinds, n.compiled
}

// AddChild attaches child as the last child of n, detaching it from its
// previous parent.
func (n *Node) AddChild(child *Node) error {
	for p := n; p != nil; p = p.parent {
		if p == child {
			return ErrCycle
		}
	}
	wasRoot := child.parent == nil && child.env.Registry != nil
	if wasRoot {
		child.env.Registry.UnregisterTrigger(child)
	} else if child.parent != nil {
		child.parent.detach(child)
	}
	child.parent = n
	n.children = append(n.children, child)
	if wasRoot {
		child.env.Registry.RegisterTrigger(child)
	}
	return nil
}

func (n *Node) detach(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i:i], n.children[i+1:]...)
			return true
		}
	}
	return false
}

// Remove detaches the node from its parent and destroys it and its subtree.
func (n *Node) Remove() {
	n.destroy()
	if n.parent != nil {
		n.parent.detach(n)
	}
}

// destroy releases the subtree bottom-up, dropping in-flight attempts and
// unregistering every node.
func (n *Node) destroy() {
	for _, c := range n.children {
		c.destroy()
	}
	n.children = nil
	n.attempts = nil
	if n.env.Scripts != nil {
		n.env.Scripts.Release(n.id)
	}
	if n.env.Registry != nil {
		n.env.Registry.UnregisterTrigger(n)
	}
}

// Register adds the node to the registry.
func (n *Node) Register() bool {
	if n.env.Registry == nil {
		n.env.Log.Error().Str("trigger", n.name).Msg("register trigger without registry")
		return false
	}
	return n.env.Registry.RegisterTrigger(n)
}

// Match evaluates line against the node and, when its condition is met or
// it is a structural folder, against its children. It reports whether the
// node or any descendant was satisfied.
func (n *Node) Match(line string) bool {
	if !n.active {
		return false
	}
	if n.lineTrigger {
		return n.matchLineDelta()
	}

	patterns, kinds, compiled := n.snapshot()

	if n.multiline {
		n.ageAttempts()
	}

	conditionMet := false
	for i, text := range patterns {
		matched, captures, positions := n.evaluate(i, text, kinds[i], compiled[i], line)
		if !matched {
			continue
		}
		if n.multiline {
			n.conditionMatched(i, len(patterns))
			continue
		}
		n.fire(kinds[i] == KindRegex, captures, positions)
		conditionMet = true
		break
	}

	if n.multiline {
		conditionMet = n.settleAttempts()
	}

	if conditionMet || len(patterns) == 0 {
		for _, child := range n.Children() {
			if child.Match(line) {
				conditionMet = true
			}
		}
	}
	return conditionMet
}

// evaluate runs a single pattern against line.
func (n *Node) evaluate(i int, text string, kind Kind, re *regexp2.Regexp, line string) (bool, []string, []int) {
	var (
		matched   bool
		captures  []string
		positions []int
		err       error
	)
	switch kind {
	case KindSubstring:
		matched = matchSubstring(line, text)
	case KindExact:
		matched = matchExact(line, text)
	case KindWildcard:
		if re == nil {
			return false, nil, nil
		}
		matched, err = matchWildcard(re, line)
	case KindRegex:
		if re == nil {
			return false, nil, nil
		}
		matched, captures, positions, err = matchRegex(re, line)
	}
	if err != nil {
		n.env.Log.Warn().Err(err).
			Int64("trigger_id", n.id).
			Str("trigger", n.name).
			Int("pattern", i).
			Msg("pattern evaluation failed")
	}
	if matched {
		n.env.Log.Debug().
			Int64("trigger_id", n.id).
			Str("trigger", n.name).
			Int("pattern", i).
			Str("kind", kind.String()).
			Strs("captures", captures).
			Msg("pattern matched")
	}
	return matched, captures, positions
}

func (n *Node) matchLineDelta() bool {
	if n.startDelta > 0 {
		n.startDelta--
		return false
	}
	if n.lineDelta > 0 {
		n.lineDelta--
		if n.lineDelta == 0 {
			n.fire(false, nil, nil)
			return true
		}
	}
	return false
}

// ageAttempts consumes one line of every attempt's window and drops the
// exhausted ones.
func (n *Node) ageAttempts() {
	live := n.attempts[:0]
	for _, s := range n.attempts {
		if s.age() {
			live = append(live, s)
		}
	}
	n.attempts = live
}

// conditionMatched spawns a new attempt for condition 0, or advances every
// attempt waiting on condition i.
func (n *Node) conditionMatched(i, conditions int) {
	if i == 0 {
		n.attempts = append(n.attempts, newMatchState(conditions, n.window))
		n.env.Log.Debug().
			Int64("trigger_id", n.id).
			Str("trigger", n.name).
			Int("attempts", len(n.attempts)).
			Msg("multiline attempt started")
		return
	}
	for k := range n.attempts {
		if n.attempts[k].next == i {
			n.attempts[k].advance()
		}
	}
}

// settleAttempts removes completed attempts, firing once per completion,
// and reports whether any completed.
func (n *Node) settleAttempts() bool {
	completed := 0
	live := n.attempts[:0]
	for _, s := range n.attempts {
		if s.complete() {
			completed++
			continue
		}
		live = append(live, s)
	}
	n.attempts = live
	if completed == 0 {
		return false
	}
	if n.env.ClearAttemptsOnFire {
		n.attempts = nil
	}
	for ; completed > 0; completed-- {
		n.fire(false, nil, nil)
	}
	return true
}

// fire executes the action, exposing regex captures to the script host for
// the duration of the call.
func (n *Node) fire(regex bool, captures []string, positions []int) {
	if regex && n.env.Scripts != nil {
		n.env.Scripts.SetCaptureGroups(captures, positions)
		defer n.env.Scripts.ClearCaptureGroups()
	}
	n.Execute(captures)
}

// Execute runs the node's action with the given captures.
func (n *Node) Execute(captures []string) {
	defer n.notify(captures)

	scripts := n.env.Scripts
	if n.temporary {
		if scripts == nil {
			return
		}
		if err := scripts.Run(n.script); err != nil {
			n.env.Log.Error().Err(err).
				Int64("trigger_id", n.id).
				Str("trigger", n.name).
				Msg("temporary trigger script failed")
		}
		return
	}

	if n.command != "" && n.env.Conn != nil {
		if err := n.env.Conn.Send(n.command); err != nil {
			n.env.Log.Error().Err(err).
				Int64("trigger_id", n.id).
				Str("trigger", n.name).
				Msg("send trigger command")
		}
	}

	if scripts == nil {
		return
	}
	if n.needsCompile {
		if err := n.compileScript(); err != nil {
			return
		}
	}
	if err := scripts.Call(n.id, captures, n.name); err != nil {
		n.env.Log.Warn().Err(err).
			Int64("trigger_id", n.id).
			Str("trigger", n.name).
			Msg("trigger script call failed")
	}
}

func (n *Node) notify(captures []string) {
	if n.env.OnFire == nil {
		return
	}
	n.env.OnFire(Fire{
		ID:       n.id,
		Name:     n.name,
		Captures: captures,
		Time:     time.Now(),
	})
}

// compileScript compiles the callback, leaving the node stale on failure.
func (n *Node) compileScript() error {
	if err := n.env.Scripts.Compile(n.id, n.script); err != nil {
		n.env.Log.Error().Err(err).
			Int64("trigger_id", n.id).
			Str("trigger", n.name).
			Msg("trigger script does not compile")
		if n.env.OnCompileError != nil {
			n.env.OnCompileError(n, err)
		}
		return err
	}
	n.needsCompile = false
	return nil
}

// Compile compiles every stale callback in the subtree.
func (n *Node) Compile() {
	if n.needsCompile && !n.temporary && n.env.Scripts != nil {
		n.compileScript()
	}
	for _, child := range n.children {
		child.Compile()
	}
}

// EnableByName activates every node in the subtree called name.
func (n *Node) EnableByName(name string) {
	if n.name == name {
		n.active = true
	}
	for _, child := range n.children {
		child.EnableByName(name)
	}
}

// DisableByName deactivates every node in the subtree called name.
func (n *Node) DisableByName(name string) {
	if n.name == name {
		n.active = false
	}
	for _, child := range n.children {
		child.DisableByName(name)
	}
}

// KillByName deactivates every node in the subtree called name. Killed
// nodes stay in the tree.
func (n *Node) KillByName(name string) {
	if n.name == name {
		n.active = false
		n.attempts = nil
	}
	for _, child := range n.children {
		child.KillByName(name)
	}
}

// Walk calls fn for n and every descendant in depth-first order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.children {
		child.Walk(fn)
	}
}

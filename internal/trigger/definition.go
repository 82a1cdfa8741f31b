// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"fmt"
)

// Definition is the declarative form of a trigger and its children, as
// read from a definitions file.
type Definition struct {
	Name            string              `json:"name"`
	Patterns        []PatternDefinition `json:"patterns,omitempty"`
	Script          string              `json:"script,omitempty"`
	Command         string              `json:"command,omitempty"`
	Multiline       bool                `json:"multiline,omitempty"`
	ConditionWindow int                 `json:"condition_window,omitempty"`
	Active          *bool               `json:"active,omitempty"`
	Children        []Definition        `json:"children,omitempty"`
}

// PatternDefinition is one pattern of a Definition.
type PatternDefinition struct {
	Text string `json:"text"`
	Kind string `json:"kind,omitempty"`
}

// IsActive reports whether the definition enables the trigger. Triggers are
// active unless stated otherwise.
func (d Definition) IsActive() bool {
	return d.Active == nil || *d.Active
}

// Split returns the pattern texts and parsed kinds.
func (d Definition) Split() ([]string, []Kind, error) {
	texts := make([]string, 0, len(d.Patterns))
	kinds := make([]Kind, 0, len(d.Patterns))
	for i, p := range d.Patterns {
		k, err := ParseKind(p.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("trigger %q pattern %d: %w", d.Name, i, err)
		}
		texts = append(texts, p.Text)
		kinds = append(kinds, k)
	}
	return texts, kinds, nil
}

// Info is a read-only view of a node and its subtree.
type Info struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name"`
	Patterns        []PatternDefinition `json:"patterns,omitempty"`
	Script          string              `json:"script,omitempty"`
	Command         string              `json:"command,omitempty"`
	Active          bool                `json:"active"`
	Folder          bool                `json:"folder"`
	Temporary       bool                `json:"temporary,omitempty"`
	Multiline       bool                `json:"multiline,omitempty"`
	ConditionWindow int                 `json:"condition_window,omitempty"`
	LiveAttempts    int                 `json:"live_attempts,omitempty"`
	NeedsCompile    bool                `json:"needs_compile"`
	Children        []Info              `json:"children,omitempty"`
}

// Info returns a view of n and its subtree.
func (n *Node) Info() Info {
	texts, kinds := n.Patterns()
	info := Info{
		ID:              n.id,
		Name:            n.name,
		Patterns:        patternDefinitions(texts, kinds),
		Script:          n.script,
		Command:         n.command,
		Active:          n.active,
		Folder:          n.folder,
		Temporary:       n.temporary,
		Multiline:       n.multiline,
		ConditionWindow: n.window,
		LiveAttempts:    len(n.attempts),
		NeedsCompile:    n.needsCompile,
	}
	for _, child := range n.children {
		info.Children = append(info.Children, child.Info())
	}
	return info
}

// Definition converts n and its subtree back to declarative form.
func (n *Node) Definition() Definition {
	texts, kinds := n.Patterns()
	def := Definition{
		Name:            n.name,
		Patterns:        patternDefinitions(texts, kinds),
		Script:          n.script,
		Command:         n.command,
		Multiline:       n.multiline,
		ConditionWindow: n.window,
	}
	if !n.active {
		inactive := false
		def.Active = &inactive
	}
	for _, child := range n.children {
		def.Children = append(def.Children, child.Definition())
	}
	return def
}

func patternDefinitions(texts []string, kinds []Kind) []PatternDefinition {
	if len(texts) == 0 {
		return nil
	}
	out := make([]PatternDefinition, len(texts))
	for i := range texts {
		out[i] = PatternDefinition{Text: texts[i], Kind: kinds[i].String()}
	}
	return out
}

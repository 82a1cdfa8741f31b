// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"

	"github.com/hjson/hjson-go/v4"

	"github.com/wingedpig/lattice/internal/trigger"
)

// triggersFile is the object form of a definitions file.
type triggersFile struct {
	Triggers []trigger.Definition `json:"triggers"`
}

// LoadTriggers reads trigger definitions from path. The file holds either a
// list of definitions or an object with a triggers list; .toml files must
// use the object form. Every definition is validated.
func LoadTriggers(path string) ([]trigger.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read triggers: %w", err)
	}
	defs, err := ParseTriggers(path, data)
	if err != nil {
		return nil, err
	}
	if err := ValidateTriggers(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// ParseTriggers decodes definitions; path selects the format by extension.
func ParseTriggers(path string, data []byte) ([]trigger.Definition, error) {
	var raw interface{}
	if ext := extension(path); ext == ".toml" {
		m, err := decodeRaw(path, data)
		if err != nil {
			return nil, err
		}
		raw = m
	} else if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	if _, ok := raw.(map[string]interface{}); ok {
		var f triggersFile
		if err := remarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("unmarshal triggers: %w", err)
		}
		return f.Triggers, nil
	}

	var defs []trigger.Definition
	if err := remarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("unmarshal triggers: %w", err)
	}
	return defs, nil
}

// ValidateTriggers checks names and pattern kinds of defs and their
// children, reporting every problem.
func ValidateTriggers(defs []trigger.Definition) error {
	errs := &ValidationError{}
	for i, def := range defs {
		validateDefinition(fmt.Sprintf("triggers[%d]", i), def, errs)
	}
	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func validateDefinition(prefix string, def trigger.Definition, errs *ValidationError) {
	if def.Name == "" {
		errs.Add(prefix+".name", "is required")
	}
	for j, p := range def.Patterns {
		if _, err := trigger.ParseKind(p.Kind); err != nil {
			errs.Add(fmt.Sprintf("%s.patterns[%d].kind", prefix, j), err.Error())
		}
	}
	if def.ConditionWindow < 0 {
		errs.Add(prefix+".condition_window", "must not be negative")
	}
	if def.Multiline && len(def.Patterns) < 2 {
		errs.Add(prefix+".patterns", "multiline triggers need at least two patterns")
	}
	for j, child := range def.Children {
		validateDefinition(fmt.Sprintf("%s.children[%d]", prefix, j), child, errs)
	}
}

// ApplyConditionWindow sets window on multiline definitions that have none.
func ApplyConditionWindow(defs []trigger.Definition, window int) {
	for i := range defs {
		if defs[i].Multiline && defs[i].ConditionWindow == 0 {
			defs[i].ConditionWindow = window
		}
		ApplyConditionWindow(defs[i].Children, window)
	}
}

// MarshalTriggers encodes defs as an HJSON definitions file.
func MarshalTriggers(defs []trigger.Definition) ([]byte, error) {
	return hjson.Marshal(triggersFile{Triggers: defs})
}

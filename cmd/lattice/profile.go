// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wingedpig/lattice/internal/config"
	"github.com/wingedpig/lattice/internal/trigger"
)

// isDefinitions reports whether path names a definitions file. Anything
// else is treated as a binary profile.
func isDefinitions(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hjson", ".json", ".toml":
		return true
	}
	return false
}

// loadUnit builds a unit from a definitions file or a binary profile.
// Scripts are not compiled.
func loadUnit(path string) (*trigger.Unit, error) {
	u := trigger.NewUnit(trigger.Env{Log: zerolog.Nop()})

	if isDefinitions(path) {
		defs, err := config.LoadTriggers(path)
		if err != nil {
			return nil, err
		}
		if err := u.Import(defs); err != nil {
			return nil, err
		}
		return u, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := u.Restore(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	return u, nil
}

// writeUnit writes u to path in the format its extension selects.
func writeUnit(u *trigger.Unit, path string) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hjson":
		out, err := config.MarshalTriggers(u.Export())
		if err != nil {
			return err
		}
		data = out
	case ".json":
		defs := u.Export()
		if defs == nil {
			defs = []trigger.Definition{}
		}
		out, err := json.MarshalIndent(defs, "", "  ")
		if err != nil {
			return err
		}
		data = append(out, '\n')
	case ".toml":
		return fmt.Errorf("writing %s: toml output is not supported", path)
	default:
		var buf bytes.Buffer
		if err := u.Serialize(&buf); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	return os.WriteFile(path, data, 0644)
}

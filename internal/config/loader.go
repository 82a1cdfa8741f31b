// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hjson/hjson-go/v4"
)

// configNames are the file names FindConfig looks for, in order.
var configNames = []string{
	"lattice.hjson",
	"lattice.json",
	"lattice.toml",
}

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path. Files ending
// in .toml are parsed as TOML, everything else as HJSON.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	raw, err := decodeRaw(path, data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := remarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		cfg.Dir = filepath.Dir(abs)
	} else {
		cfg.Dir = filepath.Dir(path)
	}
	return &cfg, nil
}

// decodeRaw parses data to an intermediate map according to the file
// extension.
func decodeRaw(path string, data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if extension(path) == ".toml" {
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		return raw, nil
	}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}
	return raw, nil
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// remarshal converts an intermediate value to JSON and unmarshals it into
// out, so both formats share the json struct tags.
func remarshal(raw interface{}, out interface{}) error {
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("convert to json: %w", err)
	}
	return json.Unmarshal(jsonData, out)
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Default returns a configuration with only default values, used when no
// config file exists.
func Default() *Config {
	cfg := &Config{}
	if wd, err := os.Getwd(); err == nil {
		cfg.Dir = wd
	}
	applyDefaults(cfg)
	return cfg
}

// FindConfig searches for a config file in the current directory.
// It looks for lattice.hjson, then lattice.json, then lattice.toml.
func (l *Loader) FindConfig() (string, error) {
	for _, name := range configNames {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for %s)", strings.Join(configNames, ", "))
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4770
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	// Session defaults
	if cfg.Session.Name == "" {
		cfg.Session.Name = "default"
	}
	if cfg.Session.Encoding == "" {
		cfg.Session.Encoding = "utf-8"
	}
	if cfg.Session.Buffer == 0 {
		cfg.Session.Buffer = 256
	}

	// Engine defaults
	if cfg.Engine.RegexTimeout == "" {
		cfg.Engine.RegexTimeout = "100ms"
	}
	if cfg.Engine.DefaultConditionWindow == 0 {
		cfg.Engine.DefaultConditionWindow = 1
	}

	// Triggers defaults
	if cfg.Triggers.Debounce == "" {
		cfg.Triggers.Debounce = "250ms"
	}

	// Store defaults
	if cfg.Store.Path == "" {
		cfg.Store.Path = "lattice.db"
	}
	if cfg.Store.Profile == "" {
		cfg.Store.Profile = cfg.Session.Name
	}
	if cfg.Store.Keep == 0 {
		cfg.Store.Keep = 20
	}

	// Events defaults
	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}
}

// Resolve returns path relative to the config directory unless it is
// absolute or empty.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

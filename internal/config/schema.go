// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON and TOML configuration loading and template
// expansion.
package config

import (
	"strings"
	"time"
)

// Config is the root configuration structure for Lattice.
type Config struct {
	Version  string         `json:"version"`
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Session  SessionConfig  `json:"session"`
	Engine   EngineConfig   `json:"engine"`
	Triggers TriggersConfig `json:"triggers"`
	Store    StoreConfig    `json:"store"`
	Events   EventsConfig   `json:"events"`
	Scripts  ScriptsConfig  `json:"scripts"`

	// Dir is the directory of the loaded config file. Relative paths in the
	// config are resolved against it.
	Dir string `json:"-"`
}

// ServerConfig configures the HTTP control API.
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	Enabled *bool  `json:"enabled"`
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`
}

// IsEnabled returns whether the HTTP API should be served.
func (s *ServerConfig) IsEnabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `json:"level"`  // "debug", "info", "warn", "error"
	Format string `json:"format"` // "json" or "console"
}

// SessionConfig configures the line source.
type SessionConfig struct {
	Name      string            `json:"name"`
	Command   interface{}       `json:"command"` // string or []string; empty reads stdin
	Env       map[string]string `json:"env"`
	StripANSI *bool             `json:"strip_ansi"`
	Encoding  string            `json:"encoding"`
	Buffer    int               `json:"buffer"`
	Rows      int               `json:"rows"` // pty size; 0 keeps the default
	Cols      int               `json:"cols"`
}

// GetCommand returns the command as a slice of strings.
func (s *SessionConfig) GetCommand() []string {
	switch cmd := s.Command.(type) {
	case string:
		return splitCommand(cmd)
	case []interface{}:
		result := make([]string, 0, len(cmd))
		for _, v := range cmd {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		if len(result) == 0 {
			return nil
		}
		return result
	case []string:
		return cmd
	default:
		return nil
	}
}

// GetEnv returns the extra environment as KEY=VALUE pairs.
func (s *SessionConfig) GetEnv() []string {
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// ShouldStripANSI reports whether escape sequences are removed from lines.
func (s *SessionConfig) ShouldStripANSI() bool {
	if s.StripANSI == nil {
		return true
	}
	return *s.StripANSI
}

// EngineConfig tunes trigger matching.
type EngineConfig struct {
	ClearAttemptsOnFire    bool   `json:"clear_attempts_on_fire"`
	RegexTimeout           string `json:"regex_timeout"`
	DefaultConditionWindow int    `json:"default_condition_window"`
}

// TriggersConfig locates the trigger definitions file.
type TriggersConfig struct {
	File     string `json:"file"`
	Watch    *bool  `json:"watch"`
	Debounce string `json:"debounce"`
}

// IsWatching returns whether the definitions file is reloaded on change.
func (t *TriggersConfig) IsWatching() bool {
	if t.Watch == nil {
		return true
	}
	return *t.Watch
}

// StoreConfig configures the snapshot database.
type StoreConfig struct {
	Path    string `json:"path"`
	Profile string `json:"profile"`
	Keep    int    `json:"keep"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	History HistoryConfig `json:"history"`
}

// HistoryConfig bounds the event history.
type HistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// ScriptsConfig lists Lua files run at startup.
type ScriptsConfig struct {
	Init []string `json:"init"`
}

// ParseDuration parses a duration string, returning a default if empty.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// splitCommand splits a command string on whitespace, respecting quoted strings.
// Supports both single and double quotes.
func splitCommand(cmd string) []string {
	var result []string
	var current strings.Builder
	var inQuote rune
	var escape bool

	for _, r := range cmd {
		if escape {
			current.WriteRune(r)
			escape = false
			continue
		}

		if r == '\\' && inQuote != '\'' {
			escape = true
			continue
		}

		if inQuote != 0 {
			if r == inQuote {
				inQuote = 0
			} else {
				current.WriteRune(r)
			}
			continue
		}

		if r == '"' || r == '\'' {
			inQuote = r
			continue
		}

		if r == ' ' || r == '\t' {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			continue
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

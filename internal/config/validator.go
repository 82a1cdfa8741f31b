// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	for i, fe := range e.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(fe.Field + ": " + fe.Message)
	}
	return b.String()
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// rule checks one section of the config and records what is wrong.
type rule func(cfg *Config, errs *ValidationError)

var rules = []rule{
	checkServer,
	checkLogging,
	checkSession,
	checkCounts,
	checkDurations,
}

// Validate runs every rule and returns a *ValidationError listing all
// failures, or nil.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}
	for _, check := range rules {
		check(cfg, errs)
	}
	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func checkServer(cfg *Config, errs *ValidationError) {
	if p := cfg.Server.Port; p < 0 || p > 65535 {
		errs.Add("server.port", "must be between 0 and 65535")
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		errs.Add("server.tls_cert", "tls_cert and tls_key must be set together")
	}
}

func checkLogging(cfg *Config, errs *ValidationError) {
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs.Add("logging.level", fmt.Sprintf("invalid level '%s'", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "", "json", "console":
	default:
		errs.Add("logging.format", fmt.Sprintf("invalid format '%s' (must be json or console)", cfg.Logging.Format))
	}
}

func checkSession(cfg *Config, errs *ValidationError) {
	if cfg.Session.Rows > 65535 || cfg.Session.Cols > 65535 {
		errs.Add("session.rows", "rows and cols must fit in 16 bits")
	}
	switch cmd := cfg.Session.Command.(type) {
	case nil, string, []string:
	case []interface{}:
		for i, arg := range cmd {
			if _, ok := arg.(string); !ok {
				errs.Add(fmt.Sprintf("session.command[%d]", i), "must be a string")
			}
		}
	default:
		errs.Add("session.command", "must be a string or a list of strings")
	}
}

func checkCounts(cfg *Config, errs *ValidationError) {
	for _, c := range []struct {
		field string
		n     int
	}{
		{"session.buffer", cfg.Session.Buffer},
		{"session.rows", cfg.Session.Rows},
		{"session.cols", cfg.Session.Cols},
		{"engine.default_condition_window", cfg.Engine.DefaultConditionWindow},
		{"store.keep", cfg.Store.Keep},
	} {
		if c.n < 0 {
			errs.Add(c.field, "must not be negative")
		}
	}
}

func checkDurations(cfg *Config, errs *ValidationError) {
	for _, d := range [][2]string{
		{"engine.regex_timeout", cfg.Engine.RegexTimeout},
		{"triggers.debounce", cfg.Triggers.Debounce},
		{"events.history.max_age", cfg.Events.History.MaxAge},
	} {
		if d[1] == "" {
			continue
		}
		if _, err := time.ParseDuration(d[1]); err != nil {
			errs.Add(d[0], fmt.Sprintf("invalid duration '%s'", d[1]))
		}
	}
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TemplateContext is the data available to templates in config values.
type TemplateContext struct {
	Session SessionTemplateData
	Dir     string // directory of the config file
	Home    string
}

// SessionTemplateData provides session data for templates.
type SessionTemplateData struct {
	Name    string
	Profile string
}

// NewTemplateContext builds the template data for cfg.
func NewTemplateContext(cfg *Config) *TemplateContext {
	home, _ := os.UserHomeDir()
	return &TemplateContext{
		Session: SessionTemplateData{
			Name:    cfg.Session.Name,
			Profile: cfg.Store.Profile,
		},
		Dir:  cfg.Dir,
		Home: home,
	}
}

// TemplateExpander expands text/template actions in config values.
type TemplateExpander struct {
	funcs template.FuncMap
}

// NewTemplateExpander returns an expander with slugify, replace, upper,
// lower, default, quote and env available.
func NewTemplateExpander() *TemplateExpander {
	return &TemplateExpander{funcs: template.FuncMap{
		"slugify": Slugify,
		"replace": Replace,
		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"default": defaultValue,
		"quote":   Quote,
		"env":     os.Getenv,
	}}
}

// Expand renders value against ctx. Values without "{{" are returned
// unchanged.
func (e *TemplateExpander) Expand(value string, ctx *TemplateContext) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}
	tmpl, err := template.New("value").Option("missingkey=error").Funcs(e.funcs).Parse(value)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, ctx); err != nil {
		return "", err
	}
	return out.String(), nil
}

// ExpandConfig expands template variables in the session command, the
// definitions file, the store path and the init scripts. It returns a copy;
// cfg is not modified.
func (e *TemplateExpander) ExpandConfig(cfg *Config, ctx *TemplateContext) (*Config, error) {
	expanded := *cfg

	var err error
	if expanded.Session.Command, err = e.expandCommand(cfg.Session.GetCommand(), ctx); err != nil {
		return nil, fmt.Errorf("session.command: %w", err)
	}
	if expanded.Triggers.File, err = e.Expand(cfg.Triggers.File, ctx); err != nil {
		return nil, fmt.Errorf("triggers.file: %w", err)
	}
	if expanded.Store.Path, err = e.Expand(cfg.Store.Path, ctx); err != nil {
		return nil, fmt.Errorf("store.path: %w", err)
	}

	if len(cfg.Scripts.Init) > 0 {
		expanded.Scripts.Init = make([]string, len(cfg.Scripts.Init))
		for i, path := range cfg.Scripts.Init {
			if expanded.Scripts.Init[i], err = e.Expand(path, ctx); err != nil {
				return nil, fmt.Errorf("scripts.init[%d]: %w", i, err)
			}
		}
	}

	if len(cfg.Session.Env) > 0 {
		expanded.Session.Env = make(map[string]string, len(cfg.Session.Env))
		for k, v := range cfg.Session.Env {
			if expanded.Session.Env[k], err = e.Expand(v, ctx); err != nil {
				return nil, fmt.Errorf("session.env.%s: %w", k, err)
			}
		}
	}

	return &expanded, nil
}

func (e *TemplateExpander) expandCommand(args []string, ctx *TemplateContext) (interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]string, len(args))
	for i, arg := range args {
		v, err := e.Expand(arg, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// foldAccents strips combining marks, so "Éowyn" becomes "Eowyn".
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, folds accents and joins runs of letters and digits
// with single hyphens. Everything else is dropped, except that
// separators (space, '/', '_', '.', '-') start a new run.
func Slugify(s string) string {
	if folded, _, err := transform.String(foldAccents, s); err == nil {
		s = folded
	}

	var b strings.Builder
	gap := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if gap && b.Len() > 0 {
				b.WriteByte('-')
			}
			gap = false
			b.WriteRune(r)
		case strings.ContainsRune(" /_.-", r):
			gap = true
		}
	}
	return b.String()
}

// Replace replaces all occurrences of old with new in s. The argument
// order suits pipelines: {{.Session.Name | replace " " "_"}}.
func Replace(old, new, s string) string {
	return strings.ReplaceAll(s, old, new)
}

// defaultValue returns value, or def when value is empty.
func defaultValue(def, value string) string {
	if value != "" {
		return value
	}
	return def
}

// Quote wraps s in double quotes, escaping any it contains.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"strings"
)

// PatternMatcher handles event pattern matching.
type PatternMatcher struct{}

// NewPatternMatcher creates a new pattern matcher.
func NewPatternMatcher() *PatternMatcher {
	return &PatternMatcher{}
}

// Match checks if an event type matches a pattern. Types and patterns are
// dot-separated segments:
//   - "*" alone matches everything
//   - a "*" segment matches exactly one segment ("*.fired", "trigger.*")
//   - a trailing ".**" matches one or more remaining segments
func (pm *PatternMatcher) Match(eventType, pattern string) bool {
	if pattern == "" || eventType == "" {
		return false
	}
	if pattern == "*" || pattern == eventType {
		return true
	}

	want := strings.Split(pattern, ".")
	got := strings.Split(eventType, ".")
	for i, seg := range want {
		if seg == "**" && i == len(want)-1 {
			return len(got) > i
		}
		if i >= len(got) {
			return false
		}
		if seg != "*" && seg != got[i] {
			return false
		}
	}
	return len(got) == len(want)
}

// Compile pre-compiles a pattern for efficient matching.
func (pm *PatternMatcher) Compile(pattern string) (CompiledPattern, error) {
	if pattern == "" {
		return nil, errors.New("empty pattern")
	}
	if i := strings.Index(pattern, "**"); i >= 0 && i != len(pattern)-2 {
		return nil, errors.New("** is only allowed as the last segment")
	}

	return &compiledPattern{
		pattern: pattern,
		matcher: pm,
	}, nil
}

// CompiledPattern is a pre-compiled pattern for efficient matching.
type CompiledPattern interface {
	Match(eventType string) bool
}

type compiledPattern struct {
	pattern string
	matcher *PatternMatcher
}

func (cp *compiledPattern) Match(eventType string) bool {
	return cp.matcher.Match(eventType, cp.pattern)
}

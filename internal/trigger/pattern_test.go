// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "", want: KindSubstring},
		{in: "substring", want: KindSubstring},
		{in: "regex", want: KindRegex},
		{in: "Perl", want: KindRegex},
		{in: "wildcard", want: KindWildcard},
		{in: "glob", want: KindWildcard},
		{in: "exact", want: KindExact},
		{in: "fuzzy", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "regex", KindRegex.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestMatchSubstring(t *testing.T) {
	assert.True(t, matchSubstring("xxfooxx", "foo"))
	assert.False(t, matchSubstring("bar", "foo"))
	assert.False(t, matchSubstring("xxFOOxx", "foo"))
}

func TestMatchExact(t *testing.T) {
	assert.True(t, matchExact("ok", "ok"))
	assert.True(t, matchExact("ok\n", "ok"))
	assert.False(t, matchExact("ok ", "ok"))
	assert.False(t, matchExact("ok\n\n", "ok"))
}

func TestMatchWildcard(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		line    string
		matches bool
	}{
		{name: "star", pattern: "foo*bar", line: "foobazbar", matches: true},
		{name: "empty star", pattern: "foo*bar", line: "foobar", matches: true},
		{name: "anchored start", pattern: "foo*bar", line: "xfoobazbar", matches: false},
		{name: "anchored end", pattern: "foo*bar", line: "foobazbarx", matches: false},
		{name: "question", pattern: "h?llo", line: "hello", matches: true},
		{name: "question needs char", pattern: "h?llo", line: "hllo", matches: false},
		{name: "class", pattern: "[abc]x", line: "bx", matches: true},
		{name: "class miss", pattern: "[abc]x", line: "dx", matches: false},
		{name: "negated class", pattern: "[!abc]x", line: "dx", matches: true},
		{name: "unclosed bracket is literal", pattern: "a[b", line: "a[b", matches: true},
		{name: "regex metachars literal", pattern: "1+1=(2)", line: "1+1=(2)", matches: true},
		{name: "dot literal", pattern: "a.c", line: "abc", matches: false},
		{name: "star spans newline", pattern: "a*z", line: "a\nz", matches: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := compilePattern(tt.pattern, KindWildcard, 0)
			require.NoError(t, err)
			got, err := matchWildcard(re, tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.matches, got)
		})
	}
}

func TestMatchRegex(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		line      string
		matches   bool
		captures  []string
		positions []int
	}{
		{
			name:    "no match",
			pattern: `\d+`,
			line:    "none here",
		},
		{
			name:    "match without groups",
			pattern: `\d+`,
			line:    "a 1 b",
			matches: true,
		},
		{
			name:      "every occurrence collected",
			pattern:   `(\d+)`,
			line:      "a 1 b 22 c 333",
			matches:   true,
			captures:  []string{"1", "22", "333"},
			positions: []int{2, 6, 11},
		},
		{
			name:      "groups in order per match",
			pattern:   `(\w+)=(\d+)`,
			line:      "hp=10 sp=20",
			matches:   true,
			captures:  []string{"hp", "10", "sp", "20"},
			positions: []int{0, 3, 6, 9},
		},
		{
			name:      "unanchored search",
			pattern:   `You see (\w+)`,
			line:      "> You see goblin.",
			matches:   true,
			captures:  []string{"goblin"},
			positions: []int{10},
		},
		{
			name:      "greedy",
			pattern:   `<(.+)>`,
			line:      "<a><b>",
			matches:   true,
			captures:  []string{"a><b"},
			positions: []int{1},
		},
		{
			name:      "non-participating group",
			pattern:   `(a)|(b)`,
			line:      "b",
			matches:   true,
			captures:  []string{"", "b"},
			positions: []int{-1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := compilePattern(tt.pattern, KindRegex, 0)
			require.NoError(t, err)
			matched, captures, positions, err := matchRegex(re, tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.matches, matched)
			assert.Equal(t, tt.captures, captures)
			assert.Equal(t, tt.positions, positions)
		})
	}
}

func TestCompilePattern_Errors(t *testing.T) {
	_, err := compilePattern("(unclosed", KindRegex, 0)
	assert.Error(t, err)

	_, err = compilePattern("plain", KindSubstring, 0)
	assert.Error(t, err)
}

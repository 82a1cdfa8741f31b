// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Kind identifies how a pattern is evaluated against a line.
type Kind int32

const (
	KindSubstring Kind = 0
	KindRegex     Kind = 1
	KindWildcard  Kind = 2
	KindExact     Kind = 3
)

var kindNames = map[Kind]string{
	KindSubstring: "substring",
	KindRegex:     "regex",
	KindWildcard:  "wildcard",
	KindExact:     "exact",
}

// String returns the definition-file name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int32(k))
}

// ParseKind converts a definition-file kind name to a Kind.
// An empty name means substring.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "substring", "sub":
		return KindSubstring, nil
	case "regex", "perl", "regexp":
		return KindRegex, nil
	case "wildcard", "glob":
		return KindWildcard, nil
	case "exact", "exact_line", "line":
		return KindExact, nil
	}
	return 0, fmt.Errorf("unknown pattern kind %q", s)
}

// needsCompile reports whether patterns of this kind are cached compiled.
func (k Kind) needsCompile() bool {
	return k == KindRegex || k == KindWildcard
}

// compilePattern builds the matcher for a regex or wildcard pattern.
func compilePattern(text string, kind Kind, timeout time.Duration) (*regexp2.Regexp, error) {
	var (
		re  *regexp2.Regexp
		err error
	)
	switch kind {
	case KindRegex:
		re, err = regexp2.Compile(text, regexp2.None)
	case KindWildcard:
		re, err = regexp2.Compile(globToRegexp(text), regexp2.Singleline)
	default:
		return nil, fmt.Errorf("kind %s is not compiled", kind)
	}
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	return re, nil
}

// globToRegexp translates a wildcard pattern into a full-line regex.
// '*' matches any run, '?' one character and [...] a character class
// ('!' negates a class).
func globToRegexp(glob string) string {
	var b strings.Builder
	b.WriteString(`\A(?:`)
	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			end := closingBracket(runes, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := runes[i+1 : end]
			b.WriteByte('[')
			if len(class) > 0 && class[0] == '!' {
				b.WriteByte('^')
				class = class[1:]
			}
			for _, r := range class {
				if r == '\\' || r == '[' || r == '^' {
					b.WriteByte('\\')
				}
				b.WriteRune(r)
			}
			b.WriteByte(']')
			i = end
		default:
			b.WriteString(regexp2.Escape(string(c)))
		}
	}
	b.WriteString(`)\z`)
	return b.String()
}

// closingBracket returns the index of the ']' closing the class opened at
// start, or -1. A ']' directly after '[' or '[!' is literal.
func closingBracket(runes []rune, start int) int {
	i := start + 1
	if i < len(runes) && runes[i] == '!' {
		i++
	}
	if i < len(runes) && runes[i] == ']' {
		i++
	}
	for ; i < len(runes); i++ {
		if runes[i] == ']' {
			return i
		}
	}
	return -1
}

// matchSubstring reports whether pattern occurs anywhere in line.
func matchSubstring(line, pattern string) bool {
	return strings.Contains(line, pattern)
}

// matchExact compares line, minus one trailing newline, to pattern.
func matchExact(line, pattern string) bool {
	return strings.TrimSuffix(line, "\n") == pattern
}

// matchWildcard reports whether the compiled glob matches the whole line.
func matchWildcard(re *regexp2.Regexp, line string) (bool, error) {
	return re.MatchString(line)
}

// matchRegex searches line for re. On a match it collects capture groups
// 1..N of every non-overlapping match, in order, with their rune offsets
// (-1 for a group that did not participate).
func matchRegex(re *regexp2.Regexp, line string) (bool, []string, []int, error) {
	m, err := re.FindStringMatch(line)
	if err != nil || m == nil {
		return false, nil, nil, err
	}

	var (
		captures  []string
		positions []int
	)
	for m != nil {
		groups := m.Groups()
		if len(groups) < 2 {
			break
		}
		for _, g := range groups[1:] {
			pos := -1
			if len(g.Captures) > 0 {
				pos = g.Index
			}
			captures = append(captures, g.String())
			positions = append(positions, pos)
		}
		m, err = re.FindNextMatch(m)
		if err != nil {
			return true, captures, positions, err
		}
	}
	return true, captures, positions, nil
}

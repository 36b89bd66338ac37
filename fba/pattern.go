// Copyright 2025 FieldBase

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fba

import "strings"

// patternKind is the enum for column name matchers.
type patternKind int

const (
	patternExact patternKind = iota
	patternPrefix
	patternSuffix
)

// Pattern matches column names in a Select operation: an exact name, a
// prefix pattern "Name*", or a suffix pattern "*Name". The server resolves
// patterns against the form's column metadata; CompilePattern only
// validates the shape, and Match implements the same resolution for
// in-process fakes and client-side table operations.
type Pattern struct {
	kind patternKind
	text string
}

// CompilePattern parses a column pattern. A "*" is only recognized at the
// very start or the very end of the pattern.
func CompilePattern(s string) (Pattern, error) {
	if s == "" || s == "*" {
		return Pattern{}, &UnsupportedOperationError{
			Op: "select", Reason: "empty column pattern"}
	}
	if strings.HasPrefix(s, "*") && strings.HasSuffix(s, "*") {
		return Pattern{}, &UnsupportedOperationError{
			Op: "select", Reason: "pattern may have at most one wildcard: " + s}
	}
	if strings.Count(s, "*") > 1 || strings.Contains(strings.Trim(s, "*"), "*") {
		return Pattern{}, &UnsupportedOperationError{
			Op: "select", Reason: "wildcard is only valid at the pattern edge: " + s}
	}
	switch {
	case strings.HasPrefix(s, "*"):
		return Pattern{kind: patternSuffix, text: s[1:]}, nil
	case strings.HasSuffix(s, "*"):
		return Pattern{kind: patternPrefix, text: s[:len(s)-1]}, nil
	default:
		return Pattern{kind: patternExact, text: s}, nil
	}
}

// Match reports whether the column name matches the pattern.
func (p Pattern) Match(name string) bool {
	switch p.kind {
	case patternPrefix:
		return strings.HasPrefix(name, p.text)
	case patternSuffix:
		return strings.HasSuffix(name, p.text)
	default:
		return name == p.text
	}
}

// String returns the pattern in its source form, as sent on the wire.
func (p Pattern) String() string {
	switch p.kind {
	case patternPrefix:
		return p.text + "*"
	case patternSuffix:
		return "*" + p.text
	default:
		return p.text
	}
}

// ExpandPatterns resolves an ordered list of patterns against the column
// names, in pattern order, de-duplicating the result by keeping the first
// occurrence of each column.
func ExpandPatterns(patterns []Pattern, columns []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		for _, c := range columns {
			if p.Match(c) && !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

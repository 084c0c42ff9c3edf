// Package policy decides which HTTP exchanges have their bodies remapped.
//
// Endpoints are allow-listed with glob patterns. A single '*' matches any
// run of characters inside one path segment, '**' matches across '/'
// boundaries, and '?', character classes ("[a-z]", "[!x]") and
// alternation ("{v1,v2}") follow the usual shell-glob rules.
package policy

import (
	"errors"
	"fmt"

	"github.com/gobwas/glob"
)

// segmentSeparator is the path separator that '*' does not cross.
const segmentSeparator = '/'

// ErrInvalidPattern indicates a pattern that cannot be compiled.
var ErrInvalidPattern = errors.New("invalid endpoint pattern")

// PatternError reports a pattern that failed to compile.
type PatternError struct {
	Index   int
	Pattern string
	Cause   error
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %d %q: %v", e.Index, e.Pattern, e.Cause)
}

// Unwrap returns the underlying error.
func (e *PatternError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *PatternError) Is(target error) bool {
	if target == ErrInvalidPattern {
		return true
	}
	_, ok := target.(*PatternError)
	return ok
}

type compiledPattern struct {
	source string
	glob   glob.Glob
}

// PatternSet is an ordered, immutable set of compiled endpoint patterns.
// A URL matches the set when it matches any member.
type PatternSet struct {
	patterns []compiledPattern
}

// NewPatternSet compiles patterns. Any invalid or empty pattern fails the
// whole set.
func NewPatternSet(patterns ...string) (*PatternSet, error) {
	set := &PatternSet{patterns: make([]compiledPattern, 0, len(patterns))}
	for i, p := range patterns {
		if p == "" {
			return nil, &PatternError{Index: i, Pattern: p, Cause: errors.New("empty pattern")}
		}
		if err := checkBrackets(p); err != nil {
			return nil, &PatternError{Index: i, Pattern: p, Cause: err}
		}
		g, err := glob.Compile(p, segmentSeparator)
		if err != nil {
			return nil, &PatternError{Index: i, Pattern: p, Cause: err}
		}
		set.patterns = append(set.patterns, compiledPattern{source: p, glob: g})
	}
	return set, nil
}

// checkBrackets rejects unbalanced alternation braces and unterminated
// character classes, which glob.Compile accepts as literal text.
func checkBrackets(pattern string) error {
	depth := 0
	inClass := false
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case c == '\\':
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return fmt.Errorf("unexpected '}' at offset %d", i)
			}
			depth--
		}
	}
	switch {
	case inClass:
		return errors.New("unterminated character class")
	case depth > 0:
		return errors.New("unterminated '{' alternation")
	}
	return nil
}

// MustPatternSet is like NewPatternSet but panics on error.
func MustPatternSet(patterns ...string) *PatternSet {
	set, err := NewPatternSet(patterns...)
	if err != nil {
		panic(err)
	}
	return set
}

// Match reports whether url matches at least one pattern. The url is
// matched exactly as given.
func (s *PatternSet) Match(url string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.patterns {
		if p.glob.Match(url) {
			return true
		}
	}
	return false
}

// Patterns returns the pattern sources in order.
func (s *PatternSet) Patterns() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		out[i] = p.source
	}
	return out
}

// Len returns the number of patterns.
func (s *PatternSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// ShouldRemap reports whether an exchange for url is subject to remapping.
// A nil set allows nothing.
func ShouldRemap(url string, patterns *PatternSet) bool {
	return patterns.Match(url)
}

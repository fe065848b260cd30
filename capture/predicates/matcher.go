// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package predicates

import (
	"fmt"
	"strings"

	"github.com/tracetunnel/tracetunnel/tunnel"
)

// Fielded is implemented by capture.CapturedSpan and capture.CapturedEvent,
// letting Field and Message operate over either without predicates
// importing capture (which in turn imports predicates for its ScanExt
// methods).
type Fielded interface {
	Value(name string) (tunnel.TracedValue, bool)
}

// Matcher tests a single TracedValue, with a printable description for
// Scanner failure messages.
type Matcher interface {
	Match(v tunnel.TracedValue) bool
	String() string
}

type matcherFunc struct {
	match func(tunnel.TracedValue) bool
	desc  string
}

func (m matcherFunc) Match(v tunnel.TracedValue) bool { return m.match(v) }
func (m matcherFunc) String() string                  { return m.desc }

// Equal returns a Matcher satisfied when the field's TracedValue equals
// scalar, using TracedValue.Equal's widening rules.
func Equal(scalar any) Matcher {
	return matcherFunc{
		match: func(v tunnel.TracedValue) bool { return v.Equal(scalar) },
		desc:  fmt.Sprintf("== %v", scalar),
	}
}

// MatchFunc wraps an arbitrary predicate function as a Matcher, for cases
// Equal and the string matchers below don't cover.
func MatchFunc(desc string, match func(tunnel.TracedValue) bool) Matcher {
	return matcherFunc{match: match, desc: desc}
}

// StringMatcher tests a string, with a printable description, used by
// Message to test an event's debug-formatted message field.
type StringMatcher interface {
	MatchString(s string) bool
	String() string
}

type stringMatcherFunc struct {
	match func(string) bool
	desc  string
}

func (m stringMatcherFunc) MatchString(s string) bool { return m.match(s) }
func (m stringMatcherFunc) String() string             { return m.desc }

// ContainsString returns a StringMatcher satisfied when the subject
// contains sub.
func ContainsString(sub string) StringMatcher {
	return stringMatcherFunc{
		match: func(s string) bool { return strings.Contains(s, sub) },
		desc:  fmt.Sprintf("contains %q", sub),
	}
}

// EqualsString returns a StringMatcher satisfied when the subject equals
// want exactly.
func EqualsString(want string) StringMatcher {
	return stringMatcherFunc{
		match: func(s string) bool { return s == want },
		desc:  fmt.Sprintf("== %q", want),
	}
}

// Field returns a Predicate matching any Fielded item (span or event)
// carrying a field named name whose value satisfies matcher.
func Field[T Fielded](name string, matcher Matcher) Predicate[T] {
	return predicateFunc[T]{
		desc: fmt.Sprintf("field %q %s", name, matcher),
		eval: func(item T) bool {
			v, ok := item.Value(name)
			return ok && matcher.Match(v)
		},
	}
}

// Message returns a Predicate matching any Fielded item carrying a
// "message" field of Object kind whose debug string satisfies matcher.
func Message[T Fielded](matcher StringMatcher) Predicate[T] {
	return predicateFunc[T]{
		desc: fmt.Sprintf("message %s", matcher),
		eval: func(item T) bool {
			v, ok := item.Value("message")
			if !ok {
				return false
			}
			s, ok := v.AsDebugString()
			return ok && matcher.MatchString(s)
		},
	}
}

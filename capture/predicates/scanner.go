// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package predicates

import "fmt"

// Scanner applies predicates over a fixed slice of captured items. Single,
// First, Last, All and None are test-facing assertions: a failure panics
// with a message naming the predicate and the label describing the scanned
// collection, plus how many items were inspected (Single, First, Last) or
// the index and text of the offending item (All, None). Matching and Len
// never panic. Scanners never appear on a production code path.
type Scanner[T any] struct {
	items []T
	label string
}

// NewScanner wraps items (already materialized from storage) for scanning.
// label identifies the collection in panic messages, e.g. "spans" or
// "child spans of span 3".
func NewScanner[T any](items []T, label string) Scanner[T] {
	return Scanner[T]{items: items, label: label}
}

// Single returns the unique item matching p, panicking if zero or more
// than one item matches.
func (s Scanner[T]) Single(p Predicate[T]) T {
	matches := s.matching(p)
	switch len(matches) {
	case 1:
		return matches[0]
	case 0:
		panic(fmt.Sprintf("predicates: no %s matched %s (scanned %d)", s.label, p, len(s.items)))
	default:
		panic(fmt.Sprintf("predicates: %d %s matched %s, want exactly 1 (scanned %d)", len(matches), s.label, p, len(s.items)))
	}
}

// First returns the first item (in scan order) matching p, panicking if
// none match.
func (s Scanner[T]) First(p Predicate[T]) T {
	for _, item := range s.items {
		if p.Eval(item) {
			return item
		}
	}
	panic(fmt.Sprintf("predicates: no %s matched %s (scanned %d)", s.label, p, len(s.items)))
}

// Last returns the last item (in scan order) matching p, panicking if none
// match.
func (s Scanner[T]) Last(p Predicate[T]) T {
	for i := len(s.items) - 1; i >= 0; i-- {
		if p.Eval(s.items[i]) {
			return s.items[i]
		}
	}
	panic(fmt.Sprintf("predicates: no %s matched %s (scanned %d)", s.label, p, len(s.items)))
}

// All panics unless every scanned item matches p.
func (s Scanner[T]) All(p Predicate[T]) {
	for i, item := range s.items {
		if !p.Eval(item) {
			panic(fmt.Sprintf("predicates: %s #%d did not match %s: %v", s.label, i, p, item))
		}
	}
}

// None panics if any scanned item matches p.
func (s Scanner[T]) None(p Predicate[T]) {
	for i, item := range s.items {
		if p.Eval(item) {
			panic(fmt.Sprintf("predicates: %s #%d unexpectedly matched %s: %v", s.label, i, p, item))
		}
	}
}

// Matching returns every scanned item satisfying p, without panicking.
func (s Scanner[T]) Matching(p Predicate[T]) []T {
	return s.matching(p)
}

// Len reports how many items this Scanner holds.
func (s Scanner[T]) Len() int { return len(s.items) }

func (s Scanner[T]) matching(p Predicate[T]) []T {
	var out []T
	for _, item := range s.items {
		if p.Eval(item) {
			out = append(out, item)
		}
	}
	return out
}

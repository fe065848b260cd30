// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

// TracedValues is an insertion-ordered mapping from field-name keys to
// TracedValue. Re-setting an existing key replaces its value in place,
// preserving the key's original position; this ordering is observable by
// the host and is preserved across (de)serialization.
type TracedValues[K comparable] struct {
	keys []K
	vals []TracedValue
	idx  map[K]int
}

// NewTracedValues returns an empty, ready-to-use TracedValues.
func NewTracedValues[K comparable]() *TracedValues[K] {
	return &TracedValues[K]{idx: make(map[K]int)}
}

// TracedValuesFromPairs builds a TracedValues from an ordered slice of
// key/value pairs, applying the same replace-preserves-position semantics
// as repeated Set calls.
func TracedValuesFromPairs[K comparable](pairs ...Pair[K]) *TracedValues[K] {
	tv := NewTracedValues[K]()
	for _, p := range pairs {
		tv.Set(p.Key, p.Value)
	}
	return tv
}

// Pair is a single field-name/value entry, used to seed a TracedValues
// literal without exposing its internal slice+index representation.
type Pair[K comparable] struct {
	Key   K
	Value TracedValue
}

// Set inserts or overwrites the value for key. Overwriting an existing key
// preserves its original position in iteration order.
func (tv *TracedValues[K]) Set(key K, value TracedValue) {
	if tv.idx == nil {
		tv.idx = make(map[K]int)
	}
	if i, ok := tv.idx[key]; ok {
		tv.vals[i] = value
		return
	}
	tv.idx[key] = len(tv.keys)
	tv.keys = append(tv.keys, key)
	tv.vals = append(tv.vals, value)
}

// Get returns the value stored for key, if any.
func (tv *TracedValues[K]) Get(key K) (TracedValue, bool) {
	if tv == nil {
		var zero TracedValue
		return zero, false
	}
	i, ok := tv.idx[key]
	if !ok {
		var zero TracedValue
		return zero, false
	}
	return tv.vals[i], true
}

// Len reports the number of distinct keys.
func (tv *TracedValues[K]) Len() int {
	if tv == nil {
		return 0
	}
	return len(tv.keys)
}

// Range calls fn for each entry in insertion order, stopping early if fn
// returns false.
func (tv *TracedValues[K]) Range(fn func(key K, value TracedValue) bool) {
	if tv == nil {
		return
	}
	for i, k := range tv.keys {
		if !fn(k, tv.vals[i]) {
			return
		}
	}
}

// Keys returns the keys in insertion order.
func (tv *TracedValues[K]) Keys() []K {
	if tv == nil {
		return nil
	}
	out := make([]K, len(tv.keys))
	copy(out, tv.keys)
	return out
}

// Clone returns a deep-enough copy that is safe to mutate independently of
// tv (TracedValue itself is immutable once constructed).
func (tv *TracedValues[K]) Clone() *TracedValues[K] {
	if tv == nil {
		return NewTracedValues[K]()
	}
	clone := &TracedValues[K]{
		keys: append([]K(nil), tv.keys...),
		vals: append([]TracedValue(nil), tv.vals...),
		idx:  make(map[K]int, len(tv.idx)),
	}
	for k, i := range tv.idx {
		clone.idx[k] = i
	}
	return clone
}

// Truncate drops every entry beyond the first n (in insertion order) and
// returns the keys that were dropped.
func (tv *TracedValues[K]) Truncate(n int) []K {
	if tv == nil || n < 0 || len(tv.keys) <= n {
		return nil
	}
	dropped := append([]K(nil), tv.keys[n:]...)
	for _, k := range dropped {
		delete(tv.idx, k)
	}
	tv.keys = tv.keys[:n]
	tv.vals = tv.vals[:n]
	return dropped
}

// Merge applies other's entries onto tv using Set semantics: existing keys
// are overwritten in place, new keys are appended in other's order.
func (tv *TracedValues[K]) Merge(other *TracedValues[K]) {
	other.Range(func(key K, value TracedValue) bool {
		tv.Set(key, value)
		return true
	})
}

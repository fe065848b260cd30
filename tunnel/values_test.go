// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracedValuesPreservesOrderAndOverwritePosition(t *testing.T) {
	tv := NewTracedValues[string]()
	tv.Set("message", String("hi"))
	tv.Set("i", Int(int64(1)))
	tv.Set("current", Bool(true))

	assert.Equal(t, []string{"message", "i", "current"}, tv.Keys())

	// Overwriting "i" must not move it to the end.
	tv.Set("i", Int(int64(2)))
	assert.Equal(t, []string{"message", "i", "current"}, tv.Keys())

	v, ok := tv.Get("i")
	assert.True(t, ok)
	assert.True(t, v.Equal(2))
}

func TestTracedValuesMergeAppendsNewPreservesPosition(t *testing.T) {
	tv := NewTracedValues[string]()
	tv.Set("a", Int(int64(1)))
	tv.Set("b", Int(int64(2)))

	other := NewTracedValues[string]()
	other.Set("b", Int(int64(20)))
	other.Set("c", Int(int64(3)))

	tv.Merge(other)

	assert.Equal(t, []string{"a", "b", "c"}, tv.Keys())
	v, _ := tv.Get("b")
	assert.True(t, v.Equal(20))
}

func TestTracedValuesNilSafe(t *testing.T) {
	var tv *TracedValues[string]
	assert.Equal(t, 0, tv.Len())
	_, ok := tv.Get("x")
	assert.False(t, ok)
	assert.Nil(t, tv.Keys())
}

func TestTracedValuesFromPairs(t *testing.T) {
	tv := TracedValuesFromPairs(
		Pair[string]{Key: "x", Value: Int(int64(1))},
		Pair[string]{Key: "y", Value: Int(int64(2))},
	)
	assert.Equal(t, 2, tv.Len())
	assert.Equal(t, []string{"x", "y"}, tv.Keys())
}

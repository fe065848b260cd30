// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracedValueScalarFidelity(t *testing.T) {
	assert.True(t, Bool(true).Equal(true))
	assert.True(t, Int(int64(-42)).Equal(-42))
	assert.True(t, UInt(uint64(42)).Equal(uint64(42)))
	assert.True(t, Float(3.5).Equal(3.5))
	assert.True(t, String("hi").Equal("hi"))

	n, ok := TryAs[int64](Int(int32(7)))
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	u, ok := TryAs[uint64](UInt(uint8(7)))
	assert.True(t, ok)
	assert.Equal(t, uint64(7), u)

	_, ok = TryAs[int64](String("not an int"))
	assert.False(t, ok)
}

func TestTracedValueObject(t *testing.T) {
	type point struct{ X, Y int }
	v := Object(point{1, 2})
	assert.Equal(t, KindObject, v.Kind())
	assert.True(t, v.IsDebug(point{1, 2}))
	assert.False(t, v.IsDebug(point{2, 1}))

	s, ok := v.AsDebugString()
	assert.True(t, ok)
	assert.Equal(t, fmt.Sprintf("%+v", point{1, 2}), s)
}

func TestTracedValueErrorChain(t *testing.T) {
	root := errors.New("root cause")
	wrapped := fmt.Errorf("context: %w", root)

	v := Error(wrapped)
	traced, ok := v.AsError()
	assert.True(t, ok)
	assert.Equal(t, "context: root cause", traced.Message)
	assert.NotNil(t, traced.Source)
	assert.Equal(t, "root cause", traced.Source.Message)
	assert.Nil(t, traced.Source.Source)
}

func TestTracedValueDeepEqual(t *testing.T) {
	assert.True(t, Int(int64(5)).deepEqual(Int(int64(5))))
	assert.False(t, Int(int64(5)).deepEqual(Int(int64(6))))
	assert.False(t, Int(int64(5)).deepEqual(UInt(uint64(5))))
}

func TestTracedValueString(t *testing.T) {
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "7", Int(int64(7)).String())
	assert.Equal(t, "hi", String("hi").String())
}

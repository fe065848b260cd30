// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import (
	"errors"
	"fmt"
	"math/big"
)

// ValueKind discriminates the variants of a TracedValue.
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindInt
	KindUInt
	KindFloat
	KindString
	KindObject
	KindError
)

// String renders the kind the way a Go %v formatter would, used in
// diagnostics rather than on any wire path.
func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// DebugObject is an opaque wrapper carrying the result of formatting an
// arbitrary value with Go's "%+v" verb. Only equality of the formatted
// string is preserved across TracedValue round trips, not the original
// value.
type DebugObject struct {
	debug string
}

// NewDebugObject formats v with "%+v" and wraps the result.
func NewDebugObject(v any) DebugObject {
	return DebugObject{debug: fmt.Sprintf("%+v", v)}
}

func (d DebugObject) String() string { return d.debug }

// TracedError is a (de)serializable presentation of an error, built by
// walking errors.Unwrap chains.
type TracedError struct {
	Message string
	Source  *TracedError
}

// NewTracedError walks err's Unwrap chain, capturing each link's message.
func NewTracedError(err error) TracedError {
	traced := TracedError{Message: err.Error()}
	if source := errors.Unwrap(err); source != nil {
		child := NewTracedError(source)
		traced.Source = &child
	}
	return traced
}

func (e *TracedError) Error() string { return e.Message }

func (e *TracedError) Unwrap() error {
	if e.Source == nil {
		return nil
	}
	return e.Source
}

func (e *TracedError) equal(other *TracedError) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Message != other.Message {
		return false
	}
	return e.Source.equal(other.Source)
}

// TracedValue is a tagged value recorded in a tracing span or event. It is
// the boundary-safe representation of a field value: booleans, arbitrary-
// width signed/unsigned integers, floats, strings, debug-formatted objects
// and error chains.
type TracedValue struct {
	kind ValueKind
	b    bool
	n    *big.Int // backs both KindInt and KindUInt
	f    float64
	s    string
	obj  DebugObject
	err  TracedError
}

// Bool wraps a boolean value.
func Bool(v bool) TracedValue { return TracedValue{kind: KindBool, b: v} }

type signedInt interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

type unsignedInt interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Int widens any signed integer narrower than 128 bits into the Int variant.
func Int[T signedInt](v T) TracedValue {
	return TracedValue{kind: KindInt, n: big.NewInt(int64(v))}
}

// UInt widens any unsigned integer narrower than 128 bits into the UInt
// variant.
func UInt[T unsignedInt](v T) TracedValue {
	return TracedValue{kind: KindUInt, n: new(big.Int).SetUint64(uint64(v))}
}

// Float wraps a 64-bit float value.
func Float(v float64) TracedValue { return TracedValue{kind: KindFloat, f: v} }

// String wraps an owned string value.
func String(v string) TracedValue { return TracedValue{kind: KindString, s: v} }

// Object wraps the debug representation of an arbitrary value. Used as the
// fallback for field types the visitor does not otherwise recognize.
func Object(v any) TracedValue {
	return TracedValue{kind: KindObject, obj: NewDebugObject(v)}
}

// Error walks err's source chain into a TracedError and wraps it.
func Error(err error) TracedValue {
	return TracedValue{kind: KindError, err: NewTracedError(err)}
}

// Kind reports which variant v carries.
func (v TracedValue) Kind() ValueKind { return v.kind }

// AsBool returns the carried boolean, if v is a Bool.
func (v TracedValue) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt64 returns the carried signed integer narrowed to int64, if v is an
// Int and the value fits.
func (v TracedValue) AsInt64() (int64, bool) {
	if v.kind != KindInt || v.n == nil || !v.n.IsInt64() {
		return 0, false
	}
	return v.n.Int64(), true
}

// AsUint64 returns the carried unsigned integer narrowed to uint64, if v is
// a UInt and the value fits.
func (v TracedValue) AsUint64() (uint64, bool) {
	if v.kind != KindUInt || v.n == nil || !v.n.IsUint64() {
		return 0, false
	}
	return v.n.Uint64(), true
}

// AsFloat64 returns the carried float, if v is a Float.
func (v TracedValue) AsFloat64() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// AsString returns the carried string, if v is a String.
func (v TracedValue) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsDebugString returns the formatted debug text, if v is an Object.
func (v TracedValue) AsDebugString() (string, bool) {
	if v.kind != KindObject {
		return "", false
	}
	return v.obj.debug, true
}

// AsError returns the carried error chain, if v is an Error.
func (v TracedValue) AsError() (TracedError, bool) {
	if v.kind != KindError {
		return TracedError{}, false
	}
	return v.err, true
}

// IsDebug reports whether v is an Object whose debug text equals object's
// "%+v" formatting.
func (v TracedValue) IsDebug(object any) bool {
	if v.kind != KindObject {
		return false
	}
	return v.obj.debug == fmt.Sprintf("%+v", object)
}

// TryAs attempts a fallible downcast of v into T, widening/narrowing as
// needed. It supports the scalar types bool, int64, uint64, float64 and
// string; any other T returns false.
func TryAs[T any](v TracedValue) (T, bool) {
	var zero T
	switch any(zero).(type) {
	case bool:
		if b, ok := v.AsBool(); ok {
			return any(b).(T), true
		}
	case int64:
		if n, ok := v.AsInt64(); ok {
			return any(n).(T), true
		}
	case uint64:
		if n, ok := v.AsUint64(); ok {
			return any(n).(T), true
		}
	case float64:
		if f, ok := v.AsFloat64(); ok {
			return any(f).(T), true
		}
	case string:
		if s, ok := v.AsString(); ok {
			return any(s).(T), true
		}
	}
	return zero, false
}

// Equal reports whether v's variant matches other's type and the scalar
// values compare equal, permitting the same widening conversions as
// construction.
func (v TracedValue) Equal(other any) bool {
	switch o := other.(type) {
	case bool:
		b, ok := v.AsBool()
		return ok && b == o
	case int:
		return v.equalInt(int64(o))
	case int8:
		return v.equalInt(int64(o))
	case int16:
		return v.equalInt(int64(o))
	case int32:
		return v.equalInt(int64(o))
	case int64:
		return v.equalInt(o)
	case uint:
		return v.equalUint(uint64(o))
	case uint8:
		return v.equalUint(uint64(o))
	case uint16:
		return v.equalUint(uint64(o))
	case uint32:
		return v.equalUint(uint64(o))
	case uint64:
		return v.equalUint(o)
	case float64:
		f, ok := v.AsFloat64()
		return ok && f == o
	case string:
		s, ok := v.AsString()
		return ok && s == o
	default:
		return false
	}
}

func (v TracedValue) equalInt(other int64) bool {
	if v.kind != KindInt || v.n == nil {
		return false
	}
	return v.n.Cmp(big.NewInt(other)) == 0
}

func (v TracedValue) equalUint(other uint64) bool {
	if v.kind != KindUInt || v.n == nil {
		return false
	}
	return v.n.Cmp(new(big.Int).SetUint64(other)) == 0
}

func (v TracedValue) deepEqual(other TracedValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindInt, KindUInt:
		if v.n == nil || other.n == nil {
			return v.n == other.n
		}
		return v.n.Cmp(other.n) == 0
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindObject:
		return v.obj.debug == other.obj.debug
	case KindError:
		return v.err.equal(&other.err)
	default:
		return false
	}
}

func (v TracedValue) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt, KindUInt:
		if v.n == nil {
			return "<nil>"
		}
		return v.n.String()
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindObject:
		return v.obj.debug
	case KindError:
		return v.err.Message
	default:
		return "<invalid TracedValue>"
	}
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/tinylib/msgp/msgp"
)

// MarshalMsg appends v's MessagePack encoding to b, implementing
// msgp.Marshaler. A TracedValue is encoded as a two-element [kind, payload]
// array so every variant round-trips through the same tagged shape; a
// signed integer's payload is itself a [negative, magnitude] array.
func (v TracedValue) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendUint8(b, uint8(v.kind))
	switch v.kind {
	case KindBool:
		b = msgp.AppendBool(b, v.b)
	case KindInt:
		b = appendBigInt(b, v.n, true)
	case KindUInt:
		b = appendBigInt(b, v.n, false)
	case KindFloat:
		b = msgp.AppendFloat64(b, v.f)
	case KindString:
		b = msgp.AppendString(b, v.s)
	case KindObject:
		b = msgp.AppendString(b, v.obj.debug)
	case KindError:
		b = appendTracedError(b, &v.err)
	default:
		return b, fmt.Errorf("tunnel: cannot marshal TracedValue with kind %d", v.kind)
	}
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (v *TracedValue) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	if sz != 2 {
		return bts, fmt.Errorf("tunnel: malformed TracedValue: expected 2 array elements, got %d", sz)
	}
	kind, bts, err := msgp.ReadUint8Bytes(bts)
	if err != nil {
		return bts, err
	}
	v.kind = ValueKind(kind)
	switch v.kind {
	case KindBool:
		v.b, bts, err = msgp.ReadBoolBytes(bts)
	case KindInt:
		v.n, bts, err = readBigInt(bts, true)
	case KindUInt:
		v.n, bts, err = readBigInt(bts, false)
	case KindFloat:
		v.f, bts, err = msgp.ReadFloat64Bytes(bts)
	case KindString:
		v.s, bts, err = msgp.ReadStringBytes(bts)
	case KindObject:
		v.obj.debug, bts, err = msgp.ReadStringBytes(bts)
	case KindError:
		var te *TracedError
		te, bts, err = readTracedError(bts)
		if err == nil {
			v.err = *te
		}
	default:
		return bts, fmt.Errorf("tunnel: cannot unmarshal TracedValue with kind %d", v.kind)
	}
	return bts, err
}

func appendBigInt(b []byte, n *big.Int, signed bool) []byte {
	if n == nil {
		n = new(big.Int)
	}
	if signed {
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendBool(b, n.Sign() < 0)
	}
	mag := new(big.Int).Abs(n)
	return msgp.AppendBytes(b, mag.Bytes())
}

func readBigInt(bts []byte, signed bool) (*big.Int, []byte, error) {
	negative := false
	var err error
	if signed {
		var sz uint32
		sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
		if err != nil {
			return nil, bts, err
		}
		if sz != 2 {
			return nil, bts, fmt.Errorf("tunnel: malformed signed integer: expected 2 array elements, got %d", sz)
		}
		negative, bts, err = msgp.ReadBoolBytes(bts)
		if err != nil {
			return nil, bts, err
		}
	}
	var mag []byte
	mag, bts, err = msgp.ReadBytesBytes(bts, nil)
	if err != nil {
		return nil, bts, err
	}
	n := new(big.Int).SetBytes(mag)
	if negative {
		n.Neg(n)
	}
	return n, bts, nil
}

func appendTracedError(b []byte, e *TracedError) []byte {
	if e == nil {
		return msgp.AppendNil(b)
	}
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendString(b, e.Message)
	if e.Source == nil {
		b = msgp.AppendNil(b)
	} else {
		b = appendTracedError(b, e.Source)
	}
	return b
}

func readTracedError(bts []byte) (*TracedError, []byte, error) {
	if msgp.IsNil(bts) {
		return nil, bts[1:], nil
	}
	sz, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, bts, err
	}
	if sz != 2 {
		return nil, bts, fmt.Errorf("tunnel: malformed TracedError: expected 2 array elements, got %d", sz)
	}
	e := &TracedError{}
	e.Message, bts, err = msgp.ReadStringBytes(bts)
	if err != nil {
		return nil, bts, err
	}
	e.Source, bts, err = readTracedError(bts)
	return e, bts, err
}

// marshalValuesString appends the MessagePack encoding of a
// TracedValues[string] to b, as an array of [key, value] pairs — an array
// rather than a map so field order survives the encoding verbatim.
func marshalValuesString(b []byte, tv *TracedValues[string]) ([]byte, error) {
	n := tv.Len()
	b = msgp.AppendArrayHeader(b, uint32(n))
	var err error
	tv.Range(func(key string, value TracedValue) bool {
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendString(b, key)
		b, err = value.MarshalMsg(b)
		return err == nil
	})
	return b, err
}

func unmarshalValuesString(bts []byte) (*TracedValues[string], []byte, error) {
	sz, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, bts, err
	}
	tv := NewTracedValues[string]()
	for i := uint32(0); i < sz; i++ {
		var pairSz uint32
		pairSz, bts, err = msgp.ReadArrayHeaderBytes(bts)
		if err != nil {
			return nil, bts, err
		}
		if pairSz != 2 {
			return nil, bts, fmt.Errorf("tunnel: malformed TracedValues entry: expected 2 array elements, got %d", pairSz)
		}
		var key string
		key, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return nil, bts, err
		}
		var value TracedValue
		bts, err = value.UnmarshalMsg(bts)
		if err != nil {
			return nil, bts, err
		}
		tv.Set(key, value)
	}
	return tv, bts, nil
}

// MarshalMsg implements msgp.Marshaler for CallSiteData.
func (c CallSiteData) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendUint8(b, uint8(c.Kind))
	b = msgp.AppendString(b, c.Name)
	b = msgp.AppendString(b, c.Target)
	b = appendOptString(b, c.ModulePath)
	b = appendOptString(b, c.File)
	b = appendOptUint32(b, c.Line)
	b = msgp.AppendUint8(b, uint8(c.Level))
	b = msgp.AppendArrayHeader(b, uint32(len(c.Fields)))
	for _, f := range c.Fields {
		b = msgp.AppendString(b, f)
	}
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler for CallSiteData.
func (c *CallSiteData) UnmarshalMsg(bts []byte) ([]byte, error) {
	kind, bts, err := msgp.ReadUint8Bytes(bts)
	if err != nil {
		return bts, err
	}
	c.Kind = CallSiteKind(kind)
	if c.Name, bts, err = msgp.ReadStringBytes(bts); err != nil {
		return bts, err
	}
	if c.Target, bts, err = msgp.ReadStringBytes(bts); err != nil {
		return bts, err
	}
	if c.ModulePath, bts, err = readOptString(bts); err != nil {
		return bts, err
	}
	if c.File, bts, err = readOptString(bts); err != nil {
		return bts, err
	}
	if c.Line, bts, err = readOptUint32(bts); err != nil {
		return bts, err
	}
	var level uint8
	if level, bts, err = msgp.ReadUint8Bytes(bts); err != nil {
		return bts, err
	}
	c.Level = TracingLevel(level)
	var sz uint32
	if sz, bts, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return bts, err
	}
	c.Fields = make([]string, sz)
	for i := range c.Fields {
		if c.Fields[i], bts, err = msgp.ReadStringBytes(bts); err != nil {
			return bts, err
		}
	}
	return bts, nil
}

func appendOptString(b []byte, s *string) []byte {
	if s == nil {
		return msgp.AppendNil(b)
	}
	return msgp.AppendString(b, *s)
}

func readOptString(bts []byte) (*string, []byte, error) {
	if msgp.IsNil(bts) {
		return nil, bts[1:], nil
	}
	s, bts, err := msgp.ReadStringBytes(bts)
	if err != nil {
		return nil, bts, err
	}
	return &s, bts, nil
}

func appendOptUint32(b []byte, v *uint32) []byte {
	if v == nil {
		return msgp.AppendNil(b)
	}
	return msgp.AppendUint32(b, *v)
}

func readOptUint32(bts []byte) (*uint32, []byte, error) {
	if msgp.IsNil(bts) {
		return nil, bts[1:], nil
	}
	v, bts, err := msgp.ReadUint32Bytes(bts)
	if err != nil {
		return nil, bts, err
	}
	return &v, bts, nil
}

// optSpanID appends a possibly-absent RawSpanID.
func appendOptSpanID(b []byte, id *RawSpanID) []byte {
	if id == nil {
		return msgp.AppendNil(b)
	}
	return msgp.AppendUint64(b, uint64(*id))
}

func readOptSpanID(bts []byte) (*RawSpanID, []byte, error) {
	if msgp.IsNil(bts) {
		return nil, bts[1:], nil
	}
	v, bts, err := msgp.ReadUint64Bytes(bts)
	if err != nil {
		return nil, bts, err
	}
	id := RawSpanID(v)
	return &id, bts, nil
}

// EncodeEvent appends event's MessagePack encoding to b. Encoding is the
// kind byte followed by the event's payload items in order, with no
// enclosing array header; decoding dispatches on the kind to reconstruct
// the matching concrete TracingEvent.
func EncodeEvent(b []byte, event TracingEvent) ([]byte, error) {
	b = msgp.AppendUint8(b, uint8(event.Kind()))
	switch e := event.(type) {
	case NewCallSiteEvent:
		b = msgp.AppendUint64(b, uint64(e.ID))
		return e.Data.MarshalMsg(b)
	case NewSpanEvent:
		b = msgp.AppendUint64(b, uint64(e.ID))
		b = appendOptSpanID(b, e.ParentID)
		b = msgp.AppendUint64(b, uint64(e.MetadataID))
		return marshalValuesString(b, e.Values)
	case ValuesRecordedEvent:
		b = msgp.AppendUint64(b, uint64(e.ID))
		return marshalValuesString(b, e.Values)
	case SpanEnteredEvent:
		return msgp.AppendUint64(b, uint64(e.ID)), nil
	case SpanExitedEvent:
		return msgp.AppendUint64(b, uint64(e.ID)), nil
	case SpanClonedEvent:
		return msgp.AppendUint64(b, uint64(e.ID)), nil
	case SpanDroppedEvent:
		return msgp.AppendUint64(b, uint64(e.ID)), nil
	case NewEventEvent:
		b = msgp.AppendUint64(b, uint64(e.MetadataID))
		b = appendOptSpanID(b, e.Parent)
		return marshalValuesString(b, e.Values)
	default:
		return b, fmt.Errorf("tunnel: cannot encode TracingEvent of type %T", event)
	}
}

// DecodeEvent reads one MessagePack-encoded TracingEvent from bts, returning
// the event and the remaining bytes.
func DecodeEvent(bts []byte) (TracingEvent, []byte, error) {
	kind, bts, err := msgp.ReadUint8Bytes(bts)
	if err != nil {
		return nil, bts, err
	}
	switch EventKind(kind) {
	case EventNewCallSite:
		var id uint64
		if id, bts, err = msgp.ReadUint64Bytes(bts); err != nil {
			return nil, bts, err
		}
		var data CallSiteData
		if bts, err = data.UnmarshalMsg(bts); err != nil {
			return nil, bts, err
		}
		return NewCallSiteEvent{ID: MetadataID(id), Data: data}, bts, nil

	case EventNewSpan:
		var id, metaID uint64
		var parent *RawSpanID
		if id, bts, err = msgp.ReadUint64Bytes(bts); err != nil {
			return nil, bts, err
		}
		if parent, bts, err = readOptSpanID(bts); err != nil {
			return nil, bts, err
		}
		if metaID, bts, err = msgp.ReadUint64Bytes(bts); err != nil {
			return nil, bts, err
		}
		var values *TracedValues[string]
		if values, bts, err = unmarshalValuesString(bts); err != nil {
			return nil, bts, err
		}
		return NewSpanEvent{ID: RawSpanID(id), ParentID: parent, MetadataID: MetadataID(metaID), Values: values}, bts, nil

	case EventValuesRecorded:
		var id uint64
		if id, bts, err = msgp.ReadUint64Bytes(bts); err != nil {
			return nil, bts, err
		}
		var values *TracedValues[string]
		if values, bts, err = unmarshalValuesString(bts); err != nil {
			return nil, bts, err
		}
		return ValuesRecordedEvent{ID: RawSpanID(id), Values: values}, bts, nil

	case EventSpanEntered:
		var id uint64
		id, bts, err = msgp.ReadUint64Bytes(bts)
		return SpanEnteredEvent{ID: RawSpanID(id)}, bts, err

	case EventSpanExited:
		var id uint64
		id, bts, err = msgp.ReadUint64Bytes(bts)
		return SpanExitedEvent{ID: RawSpanID(id)}, bts, err

	case EventSpanCloned:
		var id uint64
		id, bts, err = msgp.ReadUint64Bytes(bts)
		return SpanClonedEvent{ID: RawSpanID(id)}, bts, err

	case EventSpanDropped:
		var id uint64
		id, bts, err = msgp.ReadUint64Bytes(bts)
		return SpanDroppedEvent{ID: RawSpanID(id)}, bts, err

	case EventNewEvent:
		var metaID uint64
		var parent *RawSpanID
		if metaID, bts, err = msgp.ReadUint64Bytes(bts); err != nil {
			return nil, bts, err
		}
		if parent, bts, err = readOptSpanID(bts); err != nil {
			return nil, bts, err
		}
		var values *TracedValues[string]
		if values, bts, err = unmarshalValuesString(bts); err != nil {
			return nil, bts, err
		}
		return NewEventEvent{MetadataID: MetadataID(metaID), Parent: parent, Values: values}, bts, nil

	default:
		return nil, bts, fmt.Errorf("tunnel: unknown wire event kind %d", kind)
	}
}

// jsonField is the snake_case, order-preserving JSON presentation of a
// single TracedValues entry.
type jsonField struct {
	Name  string      `json:"name"`
	Value jsonValue   `json:"value"`
}

type jsonValue struct {
	Kind  string `json:"kind"`
	Bool  *bool  `json:"bool,omitempty"`
	Int   string `json:"int,omitempty"`
	UInt  string `json:"uint,omitempty"`
	Float *float64 `json:"float,omitempty"`
	Str   *string  `json:"string,omitempty"`
	Debug *string  `json:"object,omitempty"`
	Error *jsonTracedError `json:"error,omitempty"`
}

type jsonTracedError struct {
	Message string           `json:"message"`
	Source  *jsonTracedError `json:"source,omitempty"`
}

func toJSONValue(v TracedValue) jsonValue {
	jv := jsonValue{Kind: v.kind.String()}
	switch v.kind {
	case KindBool:
		b := v.b
		jv.Bool = &b
	case KindInt:
		jv.Int = v.n.String()
	case KindUInt:
		jv.UInt = v.n.String()
	case KindFloat:
		f := v.f
		jv.Float = &f
	case KindString:
		s := v.s
		jv.Str = &s
	case KindObject:
		d := v.obj.debug
		jv.Debug = &d
	case KindError:
		jv.Error = toJSONTracedError(&v.err)
	}
	return jv
}

func toJSONTracedError(e *TracedError) *jsonTracedError {
	if e == nil {
		return nil
	}
	return &jsonTracedError{Message: e.Message, Source: toJSONTracedError(e.Source)}
}

func fromJSONValue(jv jsonValue) (TracedValue, error) {
	switch jv.Kind {
	case KindBool.String():
		if jv.Bool == nil {
			return TracedValue{}, fmt.Errorf("tunnel: json bool value missing")
		}
		return Bool(*jv.Bool), nil
	case KindInt.String():
		n, ok := new(big.Int).SetString(jv.Int, 10)
		if !ok {
			return TracedValue{}, fmt.Errorf("tunnel: invalid json int %q", jv.Int)
		}
		return TracedValue{kind: KindInt, n: n}, nil
	case KindUInt.String():
		n, ok := new(big.Int).SetString(jv.UInt, 10)
		if !ok {
			return TracedValue{}, fmt.Errorf("tunnel: invalid json uint %q", jv.UInt)
		}
		return TracedValue{kind: KindUInt, n: n}, nil
	case KindFloat.String():
		if jv.Float == nil {
			return TracedValue{}, fmt.Errorf("tunnel: json float value missing")
		}
		return Float(*jv.Float), nil
	case KindString.String():
		if jv.Str == nil {
			return TracedValue{}, fmt.Errorf("tunnel: json string value missing")
		}
		return String(*jv.Str), nil
	case KindObject.String():
		if jv.Debug == nil {
			return TracedValue{}, fmt.Errorf("tunnel: json object value missing")
		}
		return TracedValue{kind: KindObject, obj: DebugObject{debug: *jv.Debug}}, nil
	case KindError.String():
		if jv.Error == nil {
			return TracedValue{}, fmt.Errorf("tunnel: json error value missing")
		}
		return TracedValue{kind: KindError, err: *fromJSONTracedError(jv.Error)}, nil
	default:
		return TracedValue{}, fmt.Errorf("tunnel: unknown json value kind %q", jv.Kind)
	}
}

func fromJSONTracedError(e *jsonTracedError) *TracedError {
	if e == nil {
		return nil
	}
	return &TracedError{Message: e.Message, Source: fromJSONTracedError(e.Source)}
}

func jsonFieldsOf(tv *TracedValues[string]) []jsonField {
	fields := make([]jsonField, 0, tv.Len())
	tv.Range(func(key string, value TracedValue) bool {
		fields = append(fields, jsonField{Name: key, Value: toJSONValue(value)})
		return true
	})
	return fields
}

func valuesFromJSONFields(fields []jsonField) (*TracedValues[string], error) {
	tv := NewTracedValues[string]()
	for _, f := range fields {
		v, err := fromJSONValue(f.Value)
		if err != nil {
			return nil, err
		}
		tv.Set(f.Name, v)
	}
	return tv, nil
}

// jsonEnvelope is the tagged-union JSON presentation of a TracingEvent,
// used as a human-debuggable secondary encoding alongside the primary
// MessagePack wire format.
type jsonEnvelope struct {
	Kind string `json:"kind"`

	ID         *uint64     `json:"id,omitempty"`
	ParentID   *uint64     `json:"parent_id,omitempty"`
	MetadataID *uint64     `json:"metadata_id,omitempty"`
	Data       *CallSiteData `json:"data,omitempty"`
	Values     []jsonField `json:"values,omitempty"`
}

var eventKindNames = map[EventKind]string{
	EventNewCallSite:     "new_call_site",
	EventNewSpan:         "new_span",
	EventValuesRecorded:  "values_recorded",
	EventSpanEntered:     "span_entered",
	EventSpanExited:      "span_exited",
	EventSpanCloned:      "span_cloned",
	EventSpanDropped:     "span_dropped",
	EventNewEvent:        "new_event",
}

// EncodeJSON renders event as its tagged-union JSON presentation.
func EncodeJSON(event TracingEvent) ([]byte, error) {
	env := jsonEnvelope{Kind: eventKindNames[event.Kind()]}
	switch e := event.(type) {
	case NewCallSiteEvent:
		id := uint64(e.ID)
		env.ID = &id
		env.Data = &e.Data
	case NewSpanEvent:
		id := uint64(e.ID)
		env.ID = &id
		if e.ParentID != nil {
			p := uint64(*e.ParentID)
			env.ParentID = &p
		}
		meta := uint64(e.MetadataID)
		env.MetadataID = &meta
		env.Values = jsonFieldsOf(e.Values)
	case ValuesRecordedEvent:
		id := uint64(e.ID)
		env.ID = &id
		env.Values = jsonFieldsOf(e.Values)
	case SpanEnteredEvent:
		id := uint64(e.ID)
		env.ID = &id
	case SpanExitedEvent:
		id := uint64(e.ID)
		env.ID = &id
	case SpanClonedEvent:
		id := uint64(e.ID)
		env.ID = &id
	case SpanDroppedEvent:
		id := uint64(e.ID)
		env.ID = &id
	case NewEventEvent:
		meta := uint64(e.MetadataID)
		env.MetadataID = &meta
		if e.Parent != nil {
			p := uint64(*e.Parent)
			env.ParentID = &p
		}
		env.Values = jsonFieldsOf(e.Values)
	default:
		return nil, fmt.Errorf("tunnel: cannot encode TracingEvent of type %T as json", event)
	}
	return json.Marshal(env)
}

// DecodeJSON parses a TracingEvent from its tagged-union JSON presentation.
func DecodeJSON(data []byte) (TracingEvent, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	values, err := valuesFromJSONFields(env.Values)
	if err != nil {
		return nil, err
	}
	switch env.Kind {
	case "new_call_site":
		if env.ID == nil || env.Data == nil {
			return nil, fmt.Errorf("tunnel: malformed new_call_site event")
		}
		return NewCallSiteEvent{ID: MetadataID(*env.ID), Data: *env.Data}, nil
	case "new_span":
		if env.ID == nil || env.MetadataID == nil {
			return nil, fmt.Errorf("tunnel: malformed new_span event")
		}
		var parent *RawSpanID
		if env.ParentID != nil {
			p := RawSpanID(*env.ParentID)
			parent = &p
		}
		return NewSpanEvent{ID: RawSpanID(*env.ID), ParentID: parent, MetadataID: MetadataID(*env.MetadataID), Values: values}, nil
	case "values_recorded":
		if env.ID == nil {
			return nil, fmt.Errorf("tunnel: malformed values_recorded event")
		}
		return ValuesRecordedEvent{ID: RawSpanID(*env.ID), Values: values}, nil
	case "span_entered":
		if env.ID == nil {
			return nil, fmt.Errorf("tunnel: malformed span_entered event")
		}
		return SpanEnteredEvent{ID: RawSpanID(*env.ID)}, nil
	case "span_exited":
		if env.ID == nil {
			return nil, fmt.Errorf("tunnel: malformed span_exited event")
		}
		return SpanExitedEvent{ID: RawSpanID(*env.ID)}, nil
	case "span_cloned":
		if env.ID == nil {
			return nil, fmt.Errorf("tunnel: malformed span_cloned event")
		}
		return SpanClonedEvent{ID: RawSpanID(*env.ID)}, nil
	case "span_dropped":
		if env.ID == nil {
			return nil, fmt.Errorf("tunnel: malformed span_dropped event")
		}
		return SpanDroppedEvent{ID: RawSpanID(*env.ID)}, nil
	case "new_event":
		if env.MetadataID == nil {
			return nil, fmt.Errorf("tunnel: malformed new_event event")
		}
		var parent *RawSpanID
		if env.ParentID != nil {
			p := RawSpanID(*env.ParentID)
			parent = &p
		}
		return NewEventEvent{MetadataID: MetadataID(*env.MetadataID), Parent: parent, Values: values}, nil
	default:
		return nil, fmt.Errorf("tunnel: unknown json event kind %q", env.Kind)
	}
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingLogger is a logger stub that records the formatted message it
// was given under whichever severity it was called at.
type capturingLogger struct {
	debug, warn, error []string
}

func (l *capturingLogger) Debug(format string, args ...any) {
	l.debug = append(l.debug, fmt.Sprintf(format, args...))
}
func (l *capturingLogger) Warn(format string, args ...any) {
	l.warn = append(l.warn, fmt.Sprintf(format, args...))
}
func (l *capturingLogger) Error(format string, args ...any) {
	l.error = append(l.error, fmt.Sprintf(format, args...))
}

// recordingHost is a HostSubscriber stub that records every call it
// receives, used to assert on Receiver behavior without depending on the
// capture package.
type recordingHost struct {
	nextID  int
	calls   []string
	spanMD  map[int]CallSiteData
	spanVal map[int]*TracedValues[string]
}

func newRecordingHost() *recordingHost {
	return &recordingHost{spanMD: map[int]CallSiteData{}, spanVal: map[int]*TracedValues[string]{}}
}

func (h *recordingHost) NewSpan(site CallSiteData, parent HostSpan, fields []Field) HostSpan {
	id := h.nextID
	h.nextID++
	h.spanMD[id] = site
	values := NewTracedValues[string]()
	for _, f := range fields {
		values.Set(f.Name, f.Value)
	}
	h.spanVal[id] = values
	h.calls = append(h.calls, "new_span")
	return id
}

func (h *recordingHost) Record(span HostSpan, fields []Field) {
	h.calls = append(h.calls, "record")
	values := h.spanVal[span.(int)]
	for _, f := range fields {
		values.Set(f.Name, f.Value)
	}
}

func (h *recordingHost) Enter(HostSpan) { h.calls = append(h.calls, "enter") }
func (h *recordingHost) Exit(HostSpan)  { h.calls = append(h.calls, "exit") }
func (h *recordingHost) Close(HostSpan) { h.calls = append(h.calls, "close") }
func (h *recordingHost) Event(CallSiteData, HostSpan, []Field) {
	h.calls = append(h.calls, "event")
}

func siteWithFields(fields ...string) CallSiteData {
	return CallSiteData{Kind: CallSiteSpan, Name: "test", Target: "tunnel_test", Level: LevelInfo, Fields: fields}
}

func newTestReceiver(host HostSubscriber) (*Receiver, *PersistedMetadata, *PersistedSpans, *LocalSpans) {
	metadata := NewPersistedMetadata()
	spans := NewPersistedSpans()
	local := NewLocalSpans()
	return NewReceiver(metadata, spans, local, host), metadata, spans, local
}

// S1 — Unknown metadata.
func TestReceiverUnknownMetadata(t *testing.T) {
	r, _, spans, _ := newTestReceiver(newRecordingHost())

	err := r.TryReceive(NewSpanEvent{ID: 0, ParentID: nil, MetadataID: 0, Values: NewTracedValues[string]()})

	var unknownMeta *UnknownMetadataIDError
	require.ErrorAs(t, err, &unknownMeta)
	assert.Equal(t, MetadataID(0), unknownMeta.ID)
	assert.Empty(t, spans.Inner)
}

// S2 — Unknown span (bogus references).
func TestReceiverUnknownSpan(t *testing.T) {
	host := newRecordingHost()
	r, metadata, _, _ := newTestReceiver(host)
	metadata.Inner[0] = siteWithFields()

	cases := []TracingEvent{
		SpanEnteredEvent{ID: 1},
		SpanExitedEvent{ID: 1},
		SpanDroppedEvent{ID: 1},
		NewSpanEvent{ID: 42, ParentID: ptr(RawSpanID(1)), MetadataID: 0, Values: NewTracedValues[string]()},
		NewEventEvent{MetadataID: 0, Parent: ptr(RawSpanID(1)), Values: NewTracedValues[string]()},
		ValuesRecordedEvent{ID: 1, Values: NewTracedValues[string]()},
	}

	for _, event := range cases {
		err := r.TryReceive(event)
		var unknownSpan *UnknownSpanIDError
		require.ErrorAsf(t, err, &unknownSpan, "event %T", event)
		assert.Equal(t, RawSpanID(1), unknownSpan.ID)
	}
}

// S3 — Span lifecycle.
func TestReceiverSpanLifecycle(t *testing.T) {
	host := newRecordingHost()
	r, metadata, spans, local := newTestReceiver(host)
	metadata.Inner[0] = siteWithFields("i")

	values := NewTracedValues[string]()
	values.Set("i", Int(int64(42)))

	require.NoError(t, r.TryReceive(NewSpanEvent{ID: 0, ParentID: nil, MetadataID: 0, Values: values}))
	require.NoError(t, r.TryReceive(SpanEnteredEvent{ID: 0}))
	require.NoError(t, r.TryReceive(SpanExitedEvent{ID: 0}))
	require.NoError(t, r.TryReceive(SpanDroppedEvent{ID: 0}))

	assert.Empty(t, spans.Inner)
	assert.Empty(t, local.Inner)
	assert.Equal(t, []string{"new_span", "enter", "exit", "close"}, host.calls)
}

// S4 — Restore across sessions.
func TestReceiverRestoreAcrossSessions(t *testing.T) {
	host := newRecordingHost()
	metadata := NewPersistedMetadata()
	metadata.Inner[0] = siteWithFields("i")
	spans := NewPersistedSpans()
	spans.Inner[1] = SpanData{MetadataID: 0, ParentID: nil, RefCount: 1, Values: NewTracedValues[string]()}
	local := NewLocalSpans()

	r := NewReceiver(metadata, spans, local, host)

	values := NewTracedValues[string]()
	values.Set("i", Int(int64(42)))
	require.NoError(t, r.TryReceive(ValuesRecordedEvent{ID: 1, Values: values}))

	// Bare ValuesRecorded merges into PersistedSpans without reifying.
	_, reified := local.Inner[1]
	assert.False(t, reified)
	stored, _ := spans.Inner[1].Values.Get("i")
	assert.True(t, stored.Equal(42))

	require.NoError(t, r.TryReceive(SpanEnteredEvent{ID: 1}))
	require.NoError(t, r.TryReceive(SpanExitedEvent{ID: 1}))
	require.NoError(t, r.TryReceive(SpanDroppedEvent{ID: 1}))

	assert.Empty(t, spans.Inner)
	assert.Empty(t, local.Inner)
}

// S6 — Field count boundary.
func TestReceiverFieldCountBoundary(t *testing.T) {
	host := newRecordingHost()
	r, metadata, _, _ := newTestReceiver(host)
	metadata.Inner[0] = siteWithFields()

	values32 := NewTracedValues[string]()
	for i := 0; i < 32; i++ {
		values32.Set(fieldName(i), Int(int64(i)))
	}
	require.NoError(t, r.TryReceive(NewSpanEvent{ID: 0, ParentID: nil, MetadataID: 0, Values: values32}))

	values33 := NewTracedValues[string]()
	for i := 0; i < 33; i++ {
		values33.Set(fieldName(i), Int(int64(i)))
	}
	err := r.TryReceive(NewSpanEvent{ID: 1, ParentID: nil, MetadataID: 0, Values: values33})

	var tooMany *TooManyValuesError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 33, tooMany.Actual)
	assert.Equal(t, 32, tooMany.Max)
}

func TestReceiverLazyReificationWalksAncestors(t *testing.T) {
	host := newRecordingHost()
	metadata := NewPersistedMetadata()
	metadata.Inner[0] = siteWithFields()
	spans := NewPersistedSpans()
	spans.Inner[1] = SpanData{MetadataID: 0, RefCount: 1, Values: NewTracedValues[string]()}
	spans.Inner[2] = SpanData{MetadataID: 0, ParentID: ptr(RawSpanID(1)), RefCount: 1, Values: NewTracedValues[string]()}
	local := NewLocalSpans()

	r := NewReceiver(metadata, spans, local, host)

	require.NoError(t, r.TryReceive(SpanEnteredEvent{ID: 2}))

	_, ok1 := local.Inner[1]
	_, ok2 := local.Inner[2]
	assert.True(t, ok1, "ancestor must be reified root-first")
	assert.True(t, ok2)
}

func TestReceiverLogsNewEventAtCallSiteLevel(t *testing.T) {
	host := newRecordingHost()
	log := &capturingLogger{}
	metadata := NewPersistedMetadata()
	metadata.Inner[0] = CallSiteData{Kind: CallSiteEvent, Name: "boom", Target: "tunnel_test", Level: LevelError}
	metadata.Inner[1] = CallSiteData{Kind: CallSiteEvent, Name: "chatter", Target: "tunnel_test", Level: LevelTrace}
	spans := NewPersistedSpans()
	local := NewLocalSpans()
	r := NewReceiver(metadata, spans, local, host, WithReceiverLogger(log))

	require.NoError(t, r.TryReceive(NewEventEvent{MetadataID: 0, Values: NewTracedValues[string]()}))
	require.NoError(t, r.TryReceive(NewEventEvent{MetadataID: 1, Values: NewTracedValues[string]()}))

	require.Len(t, log.error, 1)
	assert.Contains(t, log.error[0], "boom")
	require.Len(t, log.debug, 1)
	assert.Contains(t, log.debug[0], "chatter")
	assert.Empty(t, log.warn)
}

func fieldName(i int) string {
	return string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func ptr[T any](v T) *T { return &v }

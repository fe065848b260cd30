// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

// TracingEvent is the complete alphabet crossing the tunnel. It is a sealed
// interface (see appsec/types.go in the teacher repo for the same
// unexported-marker-method idiom) implemented by exactly the eight event
// kinds declared below, so a type switch over TracingEvent is guaranteed
// exhaustive as long as it handles all eight.
type TracingEvent interface {
	// Kind identifies which concrete event this is without requiring a
	// type switch, primarily for wire encoding.
	Kind() EventKind
	isTracingEvent()
}

// EventKind is the wire discriminator for a TracingEvent.
type EventKind uint8

const (
	EventNewCallSite EventKind = iota
	EventNewSpan
	EventValuesRecorded
	EventSpanEntered
	EventSpanExited
	EventSpanCloned
	EventSpanDropped
	EventNewEvent
)

// NewCallSiteEvent registers a call site, announcing the MetadataID that
// subsequent events will reference.
type NewCallSiteEvent struct {
	ID   MetadataID
	Data CallSiteData
}

func (NewCallSiteEvent) Kind() EventKind { return EventNewCallSite }
func (NewCallSiteEvent) isTracingEvent() {}

// NewSpanEvent announces a freshly created span.
type NewSpanEvent struct {
	ID         RawSpanID
	ParentID   *RawSpanID
	MetadataID MetadataID
	Values     *TracedValues[string]
}

func (NewSpanEvent) Kind() EventKind { return EventNewSpan }
func (NewSpanEvent) isTracingEvent() {}

// ValuesRecordedEvent appends or overwrites fields on an already-created
// span.
type ValuesRecordedEvent struct {
	ID     RawSpanID
	Values *TracedValues[string]
}

func (ValuesRecordedEvent) Kind() EventKind { return EventValuesRecorded }
func (ValuesRecordedEvent) isTracingEvent() {}

// SpanEnteredEvent marks a span as entered on its originating thread.
type SpanEnteredEvent struct {
	ID RawSpanID
}

func (SpanEnteredEvent) Kind() EventKind { return EventSpanEntered }
func (SpanEnteredEvent) isTracingEvent() {}

// SpanExitedEvent marks a span as exited on its originating thread.
type SpanExitedEvent struct {
	ID RawSpanID
}

func (SpanExitedEvent) Kind() EventKind { return EventSpanExited }
func (SpanExitedEvent) isTracingEvent() {}

// SpanClonedEvent increments a span's reference count. Simple senders may
// never emit this; the receiver handles it regardless.
type SpanClonedEvent struct {
	ID RawSpanID
}

func (SpanClonedEvent) Kind() EventKind { return EventSpanCloned }
func (SpanClonedEvent) isTracingEvent() {}

// SpanDroppedEvent decrements a span's reference count; the span is
// destroyed when the count reaches zero.
type SpanDroppedEvent struct {
	ID RawSpanID
}

func (SpanDroppedEvent) Kind() EventKind { return EventSpanDropped }
func (SpanDroppedEvent) isTracingEvent() {}

// NewEventEvent carries a point-in-time event, optionally attributed to a
// parent span.
type NewEventEvent struct {
	MetadataID MetadataID
	Parent     *RawSpanID
	Values     *TracedValues[string]
}

func (NewEventEvent) Kind() EventKind { return EventNewEvent }
func (NewEventEvent) isTracingEvent() {}

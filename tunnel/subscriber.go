// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import "context"

// currentSpanKey is the context.Context key under which Sender stores the
// currently entered span, modeling the implicit per-thread span stack of the
// source tracing infrastructure as an explicit, immutable context chain —
// the same convention opentracing-go and go.opentelemetry.io/otel/trace use
// to carry the "current span" across API boundaries without goroutine-local
// storage.
type currentSpanKey struct{}

// ContextWithSpan returns a copy of ctx in which id is the current span.
func ContextWithSpan(ctx context.Context, id RawSpanID) context.Context {
	return context.WithValue(ctx, currentSpanKey{}, id)
}

// SpanFromContext returns the current span stored in ctx, if any.
func SpanFromContext(ctx context.Context) (RawSpanID, bool) {
	id, ok := ctx.Value(currentSpanKey{}).(RawSpanID)
	return id, ok
}

// Subscriber is the interface a guest-side tracing infrastructure drives:
// call-site registration, span lifecycle, and event emission. Sender
// implements it and forwards every observed operation to its hook as a
// TracingEvent.
type Subscriber interface {
	// RegisterCallSite is called once per distinct call site and returns
	// the MetadataID to use for subsequent NewSpan/Event calls at that
	// site. Call sites are identified by pointer identity, mirroring the
	// 'static call-site metadata of the source tracing infrastructure: a
	// caller registers each call site's *CallSiteData once (typically a
	// package-level variable) and reuses the same pointer on every
	// invocation.
	RegisterCallSite(site *CallSiteData) MetadataID

	// NewSpan allocates a fresh span, deriving its parent from ctx's
	// current span (if any), and returns the new span's id.
	NewSpan(ctx context.Context, metadataID MetadataID, values *TracedValues[string]) RawSpanID

	// Record appends or overwrites fields on an already created span.
	Record(id RawSpanID, values *TracedValues[string])

	// Enter marks id as entered and returns a context in which it is
	// current, for the caller to use for the duration of the scope.
	Enter(ctx context.Context, id RawSpanID) context.Context

	// Exit marks id as exited.
	Exit(ctx context.Context, id RawSpanID)

	// Clone increments id's reference count.
	Clone(id RawSpanID)

	// TryClose decrements id's reference count and reports whether it
	// reached zero (i.e., the span was fully dropped).
	TryClose(id RawSpanID) bool

	// Event emits a point-in-time event, parented to ctx's current span.
	Event(ctx context.Context, metadataID MetadataID, values *TracedValues[string])
}

// HostSpan is an opaque handle to a span reified on the host side. Concrete
// HostSubscriber implementations define their own handle type (e.g. a dense
// arena index, or an opentracing.Span).
type HostSpan any

// Field is a single name/value pair, the host-facing flattened form of a
// TracedValues entry.
type Field struct {
	Name  string
	Value TracedValue
}

// fieldsOf flattens a TracedValues into an ordered Field slice.
func fieldsOf(values *TracedValues[string]) []Field {
	if values == nil {
		return nil
	}
	fields := make([]Field, 0, values.Len())
	values.Range(func(key string, value TracedValue) bool {
		fields = append(fields, Field{Name: key, Value: value})
		return true
	})
	return fields
}

// HostSubscriber is the generic host tracing runtime collaborator that a
// Receiver drives. It deliberately leaves the host runtime unspecified (per
// the tunnel's scope): any implementation capable of opening/closing spans
// with a parent and field values, entering/exiting spans, emitting events,
// and recording values on an open span can be wired in. capture.Layer and
// tunnel/otbridge.Bridge are the two implementations in this module.
type HostSubscriber interface {
	// NewSpan opens a host span for site, parented to parent (nil for a
	// root span), with the given initial fields, and returns its handle.
	NewSpan(site CallSiteData, parent HostSpan, fields []Field) HostSpan

	// Record appends or overwrites fields on an already open span.
	Record(span HostSpan, fields []Field)

	// Enter marks span as entered.
	Enter(span HostSpan)

	// Exit marks span as exited.
	Exit(span HostSpan)

	// Close finalizes span; no further mutations are valid afterwards.
	Close(span HostSpan)

	// Event records a point-in-time event for site, parented to parent
	// (nil for an event with no enclosing span).
	Event(site CallSiteData, parent HostSpan, fields []Field)
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

// Package otbridge adapts a tunnel.Receiver session onto any
// opentracing.Tracer, so events crossing the tunnel drive real spans in an
// OpenTracing-instrumented host process rather than (or alongside) the
// in-process capture arena.
package otbridge

import (
	"fmt"

	opentracing "github.com/opentracing/opentracing-go"
	otlog "github.com/opentracing/opentracing-go/log"

	"github.com/tracetunnel/tracetunnel/tunnel"
)

// Bridge is a tunnel.HostSubscriber backed by an opentracing.Tracer. Each
// reified tunnel span becomes one opentracing.Span; NewEvent becomes a
// LogFields call on the event's parent span, or on a standalone span that
// is finished immediately when the event has no parent.
type Bridge struct {
	tracer opentracing.Tracer
}

// New returns a Bridge driving tracer.
func New(tracer opentracing.Tracer) *Bridge {
	return &Bridge{tracer: tracer}
}

var _ tunnel.HostSubscriber = (*Bridge)(nil)

func startSpanOptions(site tunnel.CallSiteData, parent tunnel.HostSpan, fields []tunnel.Field) []opentracing.StartSpanOption {
	var opts []opentracing.StartSpanOption
	if parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.(opentracing.Span).Context()))
	}
	tags := opentracing.Tags{
		"tunnel.target": site.Target,
		"tunnel.level":  site.Level.String(),
	}
	for _, f := range fields {
		tags[f.Name] = f.Value.String()
	}
	opts = append(opts, tags)
	return opts
}

// NewSpan starts an opentracing.Span named after site, as a child of
// parent's span context if present.
func (b *Bridge) NewSpan(site tunnel.CallSiteData, parent tunnel.HostSpan, fields []tunnel.Field) tunnel.HostSpan {
	return b.tracer.StartSpan(site.Name, startSpanOptions(site, parent, fields)...)
}

// Record sets each field as a tag on the already-started span.
func (b *Bridge) Record(span tunnel.HostSpan, fields []tunnel.Field) {
	s := span.(opentracing.Span)
	for _, f := range fields {
		s.SetTag(f.Name, f.Value.String())
	}
}

// Enter is a no-op: OpenTracing has no separate entered/exited notion
// distinct from the span's lifetime, so entry is implied by StartSpan.
func (b *Bridge) Enter(tunnel.HostSpan) {}

// Exit is a no-op for the same reason Enter is.
func (b *Bridge) Exit(tunnel.HostSpan) {}

// Close finishes the underlying opentracing.Span.
func (b *Bridge) Close(span tunnel.HostSpan) {
	span.(opentracing.Span).Finish()
}

// Event logs fields onto parent's span if present, otherwise onto a
// synthetic standalone span scoped to the event itself.
func (b *Bridge) Event(site tunnel.CallSiteData, parent tunnel.HostSpan, fields []tunnel.Field) {
	logFields := make([]otlog.Field, 0, len(fields)+1)
	logFields = append(logFields, otlog.String("event.name", site.Name))
	for _, f := range fields {
		logFields = append(logFields, otlog.String(f.Name, fmt.Sprint(f.Value)))
	}

	if parent != nil {
		parent.(opentracing.Span).LogFields(logFields...)
		return
	}

	span := b.tracer.StartSpan(site.Name, opentracing.Tags{"tunnel.target": site.Target})
	span.LogFields(logFields...)
	span.Finish()
}

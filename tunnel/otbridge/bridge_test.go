// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package otbridge

import (
	"errors"
	"testing"

	opentracing "github.com/opentracing/opentracing-go"
	otlog "github.com/opentracing/opentracing-go/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracetunnel/tracetunnel/tunnel"
)

// fakeTracer is a minimal opentracing.Tracer stub recording every span it
// started, used to assert on Bridge behavior without pulling in a real
// tracing backend.
type fakeTracer struct {
	started  []*fakeSpan
	finished []*fakeSpan
}

func newFakeTracer() *fakeTracer { return &fakeTracer{} }

func (t *fakeTracer) StartSpan(operationName string, opts ...opentracing.StartSpanOption) opentracing.Span {
	var sso opentracing.StartSpanOptions
	for _, opt := range opts {
		opt.Apply(&sso)
	}
	span := &fakeSpan{
		tracer:        t,
		operationName: operationName,
		tags:          make(map[string]interface{}),
	}
	for k, v := range sso.Tags {
		span.tags[k] = v
	}
	for _, ref := range sso.References {
		if parentCtx, ok := ref.ReferencedContext.(*fakeSpanContext); ok {
			span.parent = parentCtx.span
		}
	}
	t.started = append(t.started, span)
	return span
}

func (t *fakeTracer) Inject(opentracing.SpanContext, interface{}, interface{}) error {
	return nil
}

func (t *fakeTracer) Extract(interface{}, interface{}) (opentracing.SpanContext, error) {
	return nil, errors.New("fakeTracer: Extract not supported")
}

type fakeSpanContext struct {
	span *fakeSpan
}

func (c *fakeSpanContext) ForeachBaggageItem(func(k, v string) bool) {}

type fakeSpan struct {
	tracer        *fakeTracer
	operationName string
	tags          map[string]interface{}
	parent        *fakeSpan
	logFields     [][]otlog.Field
	finished      bool
}

func (s *fakeSpan) Finish() {
	s.finished = true
	s.tracer.finished = append(s.tracer.finished, s)
}

func (s *fakeSpan) FinishWithOptions(opentracing.FinishOptions) { s.Finish() }
func (s *fakeSpan) Context() opentracing.SpanContext            { return &fakeSpanContext{span: s} }

func (s *fakeSpan) SetOperationName(name string) opentracing.Span {
	s.operationName = name
	return s
}

func (s *fakeSpan) SetTag(key string, value interface{}) opentracing.Span {
	s.tags[key] = value
	return s
}

func (s *fakeSpan) LogFields(fields ...otlog.Field) {
	s.logFields = append(s.logFields, fields)
}

func (s *fakeSpan) LogKV(...interface{})                            {}
func (s *fakeSpan) SetBaggageItem(string, string) opentracing.Span { return s }
func (s *fakeSpan) BaggageItem(string) string                      { return "" }
func (s *fakeSpan) Tracer() opentracing.Tracer                      { return s.tracer }
func (s *fakeSpan) LogEvent(string)                                 {}
func (s *fakeSpan) LogEventWithPayload(string, interface{})         {}
func (s *fakeSpan) Log(opentracing.LogData)                         {}

func fieldKeys(fields []otlog.Field) []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Key()
	}
	return keys
}

func TestBridgeNewSpanRecordClose(t *testing.T) {
	tracer := newFakeTracer()
	bridge := New(tracer)

	site := tunnel.CallSiteData{Kind: tunnel.CallSiteSpan, Name: "work", Target: "otbridge_test", Level: tunnel.LevelInfo}
	fields := []tunnel.Field{{Name: "num", Value: tunnel.Int(int64(7))}}

	span := bridge.NewSpan(site, nil, fields)
	require.Len(t, tracer.started, 1)
	started := tracer.started[0]
	assert.Equal(t, "work", started.operationName)
	assert.Equal(t, "otbridge_test", started.tags["tunnel.target"])
	assert.Equal(t, "INFO", started.tags["tunnel.level"])
	assert.Equal(t, tunnel.Int(int64(7)).String(), started.tags["num"])

	bridge.Record(span, []tunnel.Field{{Name: "extra", Value: tunnel.String("y")}})
	assert.Equal(t, tunnel.String("y").String(), started.tags["extra"])

	bridge.Enter(span)
	bridge.Exit(span)
	assert.False(t, started.finished)

	bridge.Close(span)
	assert.True(t, started.finished)
	assert.Len(t, tracer.finished, 1)
}

func TestBridgeNewSpanParentsChildOfParent(t *testing.T) {
	tracer := newFakeTracer()
	bridge := New(tracer)

	parentSite := tunnel.CallSiteData{Kind: tunnel.CallSiteSpan, Name: "parent", Target: "otbridge_test", Level: tunnel.LevelInfo}
	childSite := tunnel.CallSiteData{Kind: tunnel.CallSiteSpan, Name: "child", Target: "otbridge_test", Level: tunnel.LevelInfo}

	parent := bridge.NewSpan(parentSite, nil, nil)
	child := bridge.NewSpan(childSite, parent, nil)

	require.Len(t, tracer.started, 2)
	childSpan := tracer.started[1]
	assert.Same(t, tracer.started[0], childSpan.parent)
	assert.NotNil(t, child)
}

func TestBridgeEventLogsOntoParentSpan(t *testing.T) {
	tracer := newFakeTracer()
	bridge := New(tracer)

	parentSite := tunnel.CallSiteData{Kind: tunnel.CallSiteSpan, Name: "parent", Target: "otbridge_test", Level: tunnel.LevelInfo}
	eventSite := tunnel.CallSiteData{Kind: tunnel.CallSiteEvent, Name: "disturbance", Target: "otbridge_test", Level: tunnel.LevelWarn}

	parent := bridge.NewSpan(parentSite, nil, nil)
	bridge.Event(eventSite, parent, []tunnel.Field{{Name: "message", Value: tunnel.String("uh oh")}})

	parentSpan := tracer.started[0]
	require.Len(t, parentSpan.logFields, 1)
	assert.ElementsMatch(t, []string{"event.name", "message"}, fieldKeys(parentSpan.logFields[0]))
	assert.Len(t, tracer.started, 1, "an event with a parent must not start a new span")
}

func TestBridgeEventWithoutParentStartsStandaloneSpan(t *testing.T) {
	tracer := newFakeTracer()
	bridge := New(tracer)

	eventSite := tunnel.CallSiteData{Kind: tunnel.CallSiteEvent, Name: "standalone", Target: "otbridge_test", Level: tunnel.LevelInfo}
	bridge.Event(eventSite, nil, []tunnel.Field{{Name: "message", Value: tunnel.String("hi")}})

	require.Len(t, tracer.started, 1)
	span := tracer.started[0]
	assert.Equal(t, "standalone", span.operationName)
	assert.Equal(t, "otbridge_test", span.tags["tunnel.target"])
	require.Len(t, span.logFields, 1)
	assert.ElementsMatch(t, []string{"event.name", "message"}, fieldKeys(span.logFields[0]))
	assert.True(t, span.finished, "a standalone event span must be finished immediately")
}

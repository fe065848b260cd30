// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracetunnel/tracetunnel/tunnel"
)

// S5 — Capture round-trip: a span entered, carrying one event, then exited.
func TestLayerCaptureRoundTrip(t *testing.T) {
	shared := NewSharedStorage()
	layer := NewLayer(shared)

	metadata := tunnel.NewPersistedMetadata()
	siteSpan := tunnel.CallSiteData{Kind: tunnel.CallSiteSpan, Name: "test", Target: "capture_test", Level: tunnel.LevelInfo, Fields: []string{"num"}}
	siteEvent := tunnel.CallSiteData{Kind: tunnel.CallSiteEvent, Name: "event", Target: "capture_test", Level: tunnel.LevelWarn, Fields: []string{"message"}}
	metadata.Inner[0] = siteSpan
	metadata.Inner[1] = siteEvent

	spans := tunnel.NewPersistedSpans()
	local := tunnel.NewLocalSpans()
	receiver := tunnel.NewReceiver(metadata, spans, local, layer)

	spanValues := tunnel.NewTracedValues[string]()
	spanValues.Set("num", tunnel.Int(int64(42)))
	require.NoError(t, receiver.TryReceive(tunnel.NewSpanEvent{ID: 0, MetadataID: 0, Values: spanValues}))
	require.NoError(t, receiver.TryReceive(tunnel.SpanEnteredEvent{ID: 0}))

	eventValues := tunnel.NewTracedValues[string]()
	eventValues.Set("message", tunnel.Object("disturbance"))
	parent := tunnel.RawSpanID(0)
	require.NoError(t, receiver.TryReceive(tunnel.NewEventEvent{MetadataID: 1, Parent: &parent, Values: eventValues}))

	require.NoError(t, receiver.TryReceive(tunnel.SpanExitedEvent{ID: 0}))
	require.NoError(t, receiver.TryReceive(tunnel.SpanDroppedEvent{ID: 0}))

	g := shared.Lock()
	defer g.Unlock()

	allSpans := g.AllSpans()
	require.Len(t, allSpans, 1)
	span := allSpans[0]

	num, ok := span.Value("num")
	require.True(t, ok)
	assert.True(t, num.Equal(42))
	assert.Equal(t, SpanStats{Entered: 1, Exited: 1, IsClosed: true}, span.Stats())

	events := span.Events()
	require.Len(t, events, 1)
	msg, ok := events[0].Value("message")
	require.True(t, ok)
	debugStr, ok := msg.AsDebugString()
	require.True(t, ok)
	assert.Equal(t, "disturbance", debugStr)
	assert.Equal(t, tunnel.LevelWarn, events[0].Metadata().Level)
}

func TestLayerParentChildLinking(t *testing.T) {
	shared := NewSharedStorage()
	layer := NewLayer(shared)

	site := tunnel.CallSiteData{Kind: tunnel.CallSiteSpan, Name: "parent", Target: "capture_test"}
	root := layer.NewSpan(site, nil, nil)
	child := layer.NewSpan(tunnel.CallSiteData{Kind: tunnel.CallSiteSpan, Name: "child", Target: "capture_test"}, root, nil)

	g := shared.Lock()
	defer g.Unlock()

	roots := g.RootSpans()
	require.Len(t, roots, 1)
	assert.Equal(t, root, roots[0].ID())

	children := roots[0].Children()
	require.Len(t, children, 1)
	assert.Equal(t, child, children[0].ID())

	parent, ok := children[0].Parent()
	require.True(t, ok)
	assert.Equal(t, root, parent.ID())

	ancestors := children[0].Ancestors()
	require.Len(t, ancestors, 1)
	assert.Equal(t, root, ancestors[0].ID())
}

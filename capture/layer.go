// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package capture

import "github.com/tracetunnel/tracetunnel/tunnel"

// Layer is a tunnel.HostSubscriber that records every operation it observes
// into a SharedStorage arena. It holds no state of its own beyond the
// shared handle, so multiple Layers (or a Layer alongside another
// HostSubscriber fan-out) may observe the same receiver session.
type Layer struct {
	shared *SharedStorage
}

// NewLayer returns a Layer recording into shared.
func NewLayer(shared *SharedStorage) *Layer {
	return &Layer{shared: shared}
}

var _ tunnel.HostSubscriber = (*Layer)(nil)

func valuesFromFields(fields []tunnel.Field) *tunnel.TracedValues[string] {
	values := tunnel.NewTracedValues[string]()
	for _, f := range fields {
		values.Set(f.Name, f.Value)
	}
	return values
}

// NewSpan appends a new span node to the arena, linking it under parent's
// children (or into the root list, if parent is nil).
func (l *Layer) NewSpan(site tunnel.CallSiteData, parent tunnel.HostSpan, fields []tunnel.Field) tunnel.HostSpan {
	g := l.shared.Lock()
	defer g.Unlock()

	id := SpanID(len(g.storage.spans))
	var parentID *SpanID
	if parent != nil {
		p := parent.(SpanID)
		parentID = &p
	}
	g.storage.spans = append(g.storage.spans, spanNode{
		metadata: site,
		values:   valuesFromFields(fields),
		parent:   parentID,
	})
	if parentID != nil {
		g.storage.spans[*parentID].children = append(g.storage.spans[*parentID].children, id)
	} else {
		g.storage.roots = append(g.storage.roots, id)
	}
	return id
}

// Record merges fields into the span's current values.
func (l *Layer) Record(span tunnel.HostSpan, fields []tunnel.Field) {
	g := l.shared.Lock()
	defer g.Unlock()

	node := &g.storage.spans[span.(SpanID)]
	for _, f := range fields {
		node.values.Set(f.Name, f.Value)
	}
}

// Enter increments the span's entered counter.
func (l *Layer) Enter(span tunnel.HostSpan) {
	g := l.shared.Lock()
	defer g.Unlock()
	g.storage.spans[span.(SpanID)].stats.Entered++
}

// Exit increments the span's exited counter.
func (l *Layer) Exit(span tunnel.HostSpan) {
	g := l.shared.Lock()
	defer g.Unlock()
	g.storage.spans[span.(SpanID)].stats.Exited++
}

// Close marks the span closed. No further Record/Enter/Exit calls are
// expected for it afterwards.
func (l *Layer) Close(span tunnel.HostSpan) {
	g := l.shared.Lock()
	defer g.Unlock()
	g.storage.spans[span.(SpanID)].stats.IsClosed = true
}

// Event appends a new event node, attaching it to parent's event list if
// parent is non-nil.
func (l *Layer) Event(site tunnel.CallSiteData, parent tunnel.HostSpan, fields []tunnel.Field) {
	g := l.shared.Lock()
	defer g.Unlock()

	id := EventID(len(g.storage.events))
	var parentID *SpanID
	if parent != nil {
		p := parent.(SpanID)
		parentID = &p
	}
	g.storage.events = append(g.storage.events, eventNode{
		metadata: site,
		values:   valuesFromFields(fields),
		parent:   parentID,
	})
	if parentID != nil {
		g.storage.spans[*parentID].events = append(g.storage.spans[*parentID].events, id)
	}
}

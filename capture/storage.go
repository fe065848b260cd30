// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package capture

import (
	"fmt"
	"sync"

	"github.com/tracetunnel/tracetunnel/tunnel"
)

// SpanID is a dense, storage-scoped index identifying a captured span. It is
// assigned in capture order: a span's own id is always smaller than that of
// any span captured after it. Events are numbered in their own EventID
// sequence.
type SpanID int

// EventID is a dense, storage-scoped index identifying a captured event.
type EventID int

// SpanStats tracks a captured span's enter/exit/close lifecycle.
type SpanStats struct {
	Entered  uint32
	Exited   uint32
	IsClosed bool
}

type spanNode struct {
	metadata tunnel.CallSiteData
	values   *tunnel.TracedValues[string]
	stats    SpanStats
	parent   *SpanID
	children []SpanID
	events   []EventID
}

type eventNode struct {
	metadata tunnel.CallSiteData
	values   *tunnel.TracedValues[string]
	parent   *SpanID
}

// Storage is the arena backing a capture session: spans and events are
// identified by dense integer index rather than pointer, so the tree can
// never contain a reference cycle. It is never constructed directly by
// callers; obtain one via NewSharedStorage and its Lock guard.
type Storage struct {
	spans  []spanNode
	events []eventNode
	roots  []SpanID
}

// SharedStorage is a cheaply cloneable handle to a Storage guarded by a
// single mutex. Layer's write callbacks and SharedStorage.Lock's readers
// contend for the same lock; no callback may acquire it recursively.
type SharedStorage struct {
	mu      *sync.Mutex
	storage *Storage
}

// NewSharedStorage returns a handle to a fresh, empty Storage.
func NewSharedStorage() *SharedStorage {
	return &SharedStorage{mu: &sync.Mutex{}, storage: &Storage{}}
}

// Guard is a held lock on a Storage, obtained from SharedStorage.Lock. The
// caller must call Unlock (typically via defer) when done; every
// CapturedSpan/CapturedEvent view returned from a Guard borrows the
// Storage's backing arrays directly and must not be retained or read after
// Unlock.
type Guard struct {
	storage  *Storage
	mu       *sync.Mutex
	unlocked bool
}

// Lock acquires the storage mutex and returns a read guard over its
// current contents.
func (s *SharedStorage) Lock() *Guard {
	s.mu.Lock()
	return &Guard{storage: s.storage, mu: s.mu}
}

// Unlock releases the guard's hold on the storage mutex. Calling Unlock
// more than once is a no-op.
func (g *Guard) Unlock() {
	if g.unlocked {
		return
	}
	g.unlocked = true
	g.mu.Unlock()
}

// AllSpans returns every captured span, in capture order.
func (g *Guard) AllSpans() []CapturedSpan {
	out := make([]CapturedSpan, len(g.storage.spans))
	for i := range g.storage.spans {
		out[i] = CapturedSpan{storage: g.storage, id: SpanID(i)}
	}
	return out
}

// RootSpans returns every span with no parent, in capture order.
func (g *Guard) RootSpans() []CapturedSpan {
	out := make([]CapturedSpan, len(g.storage.roots))
	for i, id := range g.storage.roots {
		out[i] = CapturedSpan{storage: g.storage, id: id}
	}
	return out
}

// AllEvents returns every captured event, in capture order.
func (g *Guard) AllEvents() []CapturedEvent {
	out := make([]CapturedEvent, len(g.storage.events))
	for i := range g.storage.events {
		out[i] = CapturedEvent{storage: g.storage, id: EventID(i)}
	}
	return out
}

// Span looks up a captured span by id.
func (g *Guard) Span(id SpanID) (CapturedSpan, bool) {
	if int(id) < 0 || int(id) >= len(g.storage.spans) {
		return CapturedSpan{}, false
	}
	return CapturedSpan{storage: g.storage, id: id}, true
}

// Event looks up a captured event by id.
func (g *Guard) Event(id EventID) (CapturedEvent, bool) {
	if int(id) < 0 || int(id) >= len(g.storage.events) {
		return CapturedEvent{}, false
	}
	return CapturedEvent{storage: g.storage, id: id}, true
}

// CapturedSpan is a read-only view of one span in a Storage arena.
type CapturedSpan struct {
	storage *Storage
	id      SpanID
}

// ID returns the span's storage-scoped identifier.
func (s CapturedSpan) ID() SpanID { return s.id }

func (s CapturedSpan) node() *spanNode { return &s.storage.spans[s.id] }

// Metadata returns the call site this span was created at.
func (s CapturedSpan) Metadata() tunnel.CallSiteData { return s.node().metadata }

// Values returns the span's current field values.
func (s CapturedSpan) Values() *tunnel.TracedValues[string] { return s.node().values }

// Value looks up a single field by name, implementing predicates.Fielded.
func (s CapturedSpan) Value(name string) (tunnel.TracedValue, bool) {
	return s.node().values.Get(name)
}

// Stats returns the span's enter/exit/close counters.
func (s CapturedSpan) Stats() SpanStats { return s.node().stats }

// Parent returns the span's parent, if any.
func (s CapturedSpan) Parent() (CapturedSpan, bool) {
	p := s.node().parent
	if p == nil {
		return CapturedSpan{}, false
	}
	return CapturedSpan{storage: s.storage, id: *p}, true
}

// Ancestors returns the span's ancestor chain, nearest parent first.
func (s CapturedSpan) Ancestors() []CapturedSpan {
	var out []CapturedSpan
	cur := s
	for {
		parent, ok := cur.Parent()
		if !ok {
			return out
		}
		out = append(out, parent)
		cur = parent
	}
}

// Children returns the span's direct children, in capture order.
func (s CapturedSpan) Children() []CapturedSpan {
	ids := s.node().children
	out := make([]CapturedSpan, len(ids))
	for i, id := range ids {
		out[i] = CapturedSpan{storage: s.storage, id: id}
	}
	return out
}

// Events returns the events attached directly to this span, in capture
// order.
func (s CapturedSpan) Events() []CapturedEvent {
	ids := s.node().events
	out := make([]CapturedEvent, len(ids))
	for i, id := range ids {
		out[i] = CapturedEvent{storage: s.storage, id: id}
	}
	return out
}

// String renders a short diagnostic form, used by predicates.Scanner
// failure messages.
func (s CapturedSpan) String() string {
	return fmt.Sprintf("span %q (id=%d, entered=%d, exited=%d, closed=%t)",
		s.node().metadata.Name, s.id, s.node().stats.Entered, s.node().stats.Exited, s.node().stats.IsClosed)
}

// CapturedEvent is a read-only view of one event in a Storage arena.
type CapturedEvent struct {
	storage *Storage
	id      EventID
}

// ID returns the event's storage-scoped identifier.
func (e CapturedEvent) ID() EventID { return e.id }

func (e CapturedEvent) node() *eventNode { return &e.storage.events[e.id] }

// Metadata returns the call site this event was recorded at.
func (e CapturedEvent) Metadata() tunnel.CallSiteData { return e.node().metadata }

// Values returns the event's field values.
func (e CapturedEvent) Values() *tunnel.TracedValues[string] { return e.node().values }

// Value looks up a single field by name, implementing predicates.Fielded.
func (e CapturedEvent) Value(name string) (tunnel.TracedValue, bool) {
	return e.node().values.Get(name)
}

// Parent returns the span this event was recorded under, if any.
func (e CapturedEvent) Parent() (CapturedSpan, bool) {
	p := e.node().parent
	if p == nil {
		return CapturedSpan{}, false
	}
	return CapturedSpan{storage: e.storage, id: *p}, true
}

// String renders a short diagnostic form, used by predicates.Scanner
// failure messages.
func (e CapturedEvent) String() string {
	msg, _ := e.node().values.Get("message")
	return fmt.Sprintf("event %q (id=%d, message=%s)", e.node().metadata.Name, e.id, msg.String())
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import (
	"context"
	"sync"
)

// Hook ships a TracingEvent out of the guest. Any transport — channel,
// shared memory, a WASM import function — is acceptable; the Sender itself
// is transport-agnostic.
type Hook func(TracingEvent)

// Sender is a Subscriber that translates tracing operations into wire
// events and forwards each one through its hook.
type Sender struct {
	hook       Hook
	log        logger
	fieldLimit int

	mu          sync.Mutex
	callSites   map[*CallSiteData]MetadataID
	nextMeta    MetadataID
	nextSpan    RawSpanID
	refCounts   map[RawSpanID]uint32
}

// NewSender constructs a Sender that forwards every observed tracing
// operation to hook.
func NewSender(hook Hook, opts ...SenderOption) *Sender {
	s := &Sender{
		hook:       hook,
		log:        noopLogger{},
		fieldLimit: 0, // 0 means "no local limit"; the receiver's 32-field cap still applies downstream.
		callSites:  make(map[*CallSiteData]MetadataID),
		refCounts:  make(map[RawSpanID]uint32),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	return s
}

// SenderOption customizes a Sender constructed via NewSender.
type SenderOption interface {
	apply(*Sender)
}

type senderOptionFunc func(*Sender)

func (f senderOptionFunc) apply(s *Sender) { f(s) }

// WithLogger overrides the Sender's diagnostic logger, used to report
// values dropped for exceeding WithFieldLimit.
func WithLogger(l logger) SenderOption {
	return senderOptionFunc(func(s *Sender) { s.log = l })
}

// WithFieldLimit lets a guest opt into a local field cap stricter than the
// receiver's fixed 32-field maximum: a span, record or event carrying more
// than max values keeps only the first max (in insertion order) and has the
// excess dropped inside the guest, with a warning logged, instead of
// crossing the tunnel only to be rejected by the receiver. The limit is not
// compared against the call site's declared fields.
func WithFieldLimit(max int) SenderOption {
	return senderOptionFunc(func(s *Sender) { s.fieldLimit = max })
}

var _ Subscriber = (*Sender)(nil)

// RegisterCallSite registers site on first encounter (identified by pointer
// identity) and returns the cached MetadataID on every subsequent call.
func (s *Sender) RegisterCallSite(site *CallSiteData) MetadataID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.callSites[site]; ok {
		return id
	}
	id := s.nextMeta
	s.nextMeta++
	s.callSites[site] = id
	s.hook(NewCallSiteEvent{ID: id, Data: *site})
	return id
}

// NewSpan allocates a fresh monotonic span id, derives the parent from
// ctx's current span, and emits NewSpan.
func (s *Sender) NewSpan(ctx context.Context, metadataID MetadataID, values *TracedValues[string]) RawSpanID {
	s.mu.Lock()
	id := s.nextSpan
	s.nextSpan++
	s.refCounts[id] = 1
	s.mu.Unlock()

	var parentID *RawSpanID
	if parent, ok := SpanFromContext(ctx); ok {
		parentID = &parent
	}
	s.applyFieldLimit(values)
	s.hook(NewSpanEvent{ID: id, ParentID: parentID, MetadataID: metadataID, Values: values})
	return id
}

// Record emits ValuesRecorded carrying only the newly written fields; the
// receiver merges them into the persisted span by key, preserving position.
func (s *Sender) Record(id RawSpanID, values *TracedValues[string]) {
	s.applyFieldLimit(values)
	s.hook(ValuesRecordedEvent{ID: id, Values: values})
}

// Enter emits SpanEntered and returns a context in which id is current.
func (s *Sender) Enter(ctx context.Context, id RawSpanID) context.Context {
	s.hook(SpanEnteredEvent{ID: id})
	return ContextWithSpan(ctx, id)
}

// Exit emits SpanExited.
func (s *Sender) Exit(_ context.Context, id RawSpanID) {
	s.hook(SpanExitedEvent{ID: id})
}

// Clone increments id's reference count and emits SpanCloned.
func (s *Sender) Clone(id RawSpanID) {
	s.mu.Lock()
	s.refCounts[id]++
	s.mu.Unlock()
	s.hook(SpanClonedEvent{ID: id})
}

// TryClose decrements id's reference count and emits SpanDropped; it
// reports whether the count reached zero.
func (s *Sender) TryClose(id RawSpanID) bool {
	s.mu.Lock()
	count := s.refCounts[id]
	if count > 0 {
		count--
	}
	dropped := count == 0
	if dropped {
		delete(s.refCounts, id)
	} else {
		s.refCounts[id] = count
	}
	s.mu.Unlock()

	s.hook(SpanDroppedEvent{ID: id})
	return dropped
}

// Event emits NewEvent, parenting it to ctx's current span.
func (s *Sender) Event(ctx context.Context, metadataID MetadataID, values *TracedValues[string]) {
	var parent *RawSpanID
	if id, ok := SpanFromContext(ctx); ok {
		parent = &id
	}
	s.applyFieldLimit(values)
	s.hook(NewEventEvent{MetadataID: metadataID, Parent: parent, Values: values})
}

func (s *Sender) applyFieldLimit(values *TracedValues[string]) {
	if s.fieldLimit <= 0 || values == nil || values.Len() <= s.fieldLimit {
		return
	}
	dropped := values.Truncate(s.fieldLimit)
	s.log.Warn("tunnel: dropping %d fields beyond local limit %d: %v", len(dropped), s.fieldLimit, dropped)
}

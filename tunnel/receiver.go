// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import "log/slog"

// maxFields bounds the number of fields a single NewSpan, ValuesRecorded or
// NewEvent may carry. Host tracing subscribers commonly cap span/event
// field count at a fixed maximum; the receiver enforces the same cap so a
// malformed or adversarial guest cannot grow an unbounded field map on the
// host side.
const maxFields = 32

// Receiver is a stateful consumer that reconstructs host-side spans from a
// stream of TracingEvents. It owns no state of its own: PersistedMetadata,
// PersistedSpans and LocalSpans are supplied by the caller and mutated in
// place, so a new Receiver seeded from a prior session's persisted state
// behaves identically to one that observed the whole stream.
type Receiver struct {
	metadata *PersistedMetadata
	spans    *PersistedSpans
	local    *LocalSpans
	host     HostSubscriber
	log      logger
}

// ReceiverOption customizes a Receiver constructed via NewReceiver.
type ReceiverOption interface {
	apply(*Receiver)
}

type receiverOptionFunc func(*Receiver)

func (f receiverOptionFunc) apply(r *Receiver) { f(r) }

// WithReceiverLogger overrides the Receiver's diagnostic logger, used by
// Receive to report swallowed errors.
func WithReceiverLogger(l logger) ReceiverOption {
	return receiverOptionFunc(func(r *Receiver) { r.log = l })
}

// NewReceiver constructs a Receiver driving host for the duration of this
// session, borrowing metadata, spans and local mutably. Unlike the source
// tracing infrastructure's reliance on an implicit global dispatcher, host
// is supplied explicitly — an intentional adaptation to Go's lack of
// implicit thread-local subscriber state (see DESIGN.md).
func NewReceiver(metadata *PersistedMetadata, spans *PersistedSpans, local *LocalSpans, host HostSubscriber, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		metadata: metadata,
		spans:    spans,
		local:    local,
		host:     host,
		log:      noopLogger{},
	}
	for _, opt := range opts {
		opt.apply(r)
	}
	return r
}

// Receive processes event, logging and dropping it if invalid. It never
// panics.
func (r *Receiver) Receive(event TracingEvent) {
	if err := r.TryReceive(event); err != nil {
		r.log.Warn("tunnel: dropping event: %v", err)
	}
}

// TryReceive processes event, returning the first validation error
// encountered. State mutations are all-or-nothing: on error, no persisted
// structure is modified.
func (r *Receiver) TryReceive(event TracingEvent) error {
	switch e := event.(type) {
	case NewCallSiteEvent:
		return r.receiveNewCallSite(e)
	case NewSpanEvent:
		return r.receiveNewSpan(e)
	case ValuesRecordedEvent:
		return r.receiveValuesRecorded(e)
	case SpanEnteredEvent:
		return r.receiveSpanEntered(e)
	case SpanExitedEvent:
		return r.receiveSpanExited(e)
	case SpanClonedEvent:
		return r.receiveSpanCloned(e)
	case SpanDroppedEvent:
		return r.receiveSpanDropped(e)
	case NewEventEvent:
		return r.receiveNewEvent(e)
	default:
		return nil
	}
}

func (r *Receiver) receiveNewCallSite(e NewCallSiteEvent) error {
	if existing, ok := r.metadata.Inner[e.ID]; ok && !existing.Equal(e.Data) {
		r.log.Warn("tunnel: call site %d re-registered with different data", e.ID)
	}
	r.metadata.Inner[e.ID] = e.Data
	return nil
}

func (r *Receiver) receiveNewSpan(e NewSpanEvent) error {
	site, ok := r.metadata.Inner[e.MetadataID]
	if !ok {
		return &UnknownMetadataIDError{ID: e.MetadataID}
	}
	if e.ParentID != nil {
		if _, ok := r.spans.Inner[*e.ParentID]; !ok {
			return &UnknownSpanIDError{ID: *e.ParentID}
		}
	}
	if n := e.Values.Len(); n > maxFields {
		return &TooManyValuesError{Actual: n, Max: maxFields}
	}

	var parent HostSpan
	if e.ParentID != nil {
		reified, err := r.reify(*e.ParentID)
		if err != nil {
			return err
		}
		parent = reified
	}

	r.spans.Inner[e.ID] = SpanData{
		MetadataID: e.MetadataID,
		ParentID:   e.ParentID,
		RefCount:   1,
		Values:     e.Values.Clone(),
	}
	r.local.Inner[e.ID] = r.host.NewSpan(site, parent, fieldsOf(e.Values))
	return nil
}

func (r *Receiver) receiveValuesRecorded(e ValuesRecordedEvent) error {
	data, ok := r.spans.Inner[e.ID]
	if !ok {
		return &UnknownSpanIDError{ID: e.ID}
	}
	if n := e.Values.Len(); n > maxFields {
		return &TooManyValuesError{Actual: n, Max: maxFields}
	}

	data.Values.Merge(e.Values)
	// Unlike Enter/Exit/Event, recording values does not by itself force
	// reification: a span that has only had fields recorded on it (and
	// never entered) stays dormant in PersistedSpans until something
	// actually needs it live on the host.
	if span, ok := r.local.Inner[e.ID]; ok {
		r.host.Record(span, fieldsOf(e.Values))
	}
	return nil
}

func (r *Receiver) receiveSpanEntered(e SpanEnteredEvent) error {
	if _, ok := r.spans.Inner[e.ID]; !ok {
		return &UnknownSpanIDError{ID: e.ID}
	}
	span, err := r.reify(e.ID)
	if err != nil {
		return err
	}
	r.host.Enter(span)
	return nil
}

func (r *Receiver) receiveSpanExited(e SpanExitedEvent) error {
	if _, ok := r.spans.Inner[e.ID]; !ok {
		return &UnknownSpanIDError{ID: e.ID}
	}
	span, err := r.reify(e.ID)
	if err != nil {
		return err
	}
	r.host.Exit(span)
	return nil
}

func (r *Receiver) receiveSpanCloned(e SpanClonedEvent) error {
	data, ok := r.spans.Inner[e.ID]
	if !ok {
		return &UnknownSpanIDError{ID: e.ID}
	}
	data.RefCount++
	r.spans.Inner[e.ID] = data
	return nil
}

func (r *Receiver) receiveSpanDropped(e SpanDroppedEvent) error {
	data, ok := r.spans.Inner[e.ID]
	if !ok {
		return &UnknownSpanIDError{ID: e.ID}
	}
	if data.RefCount > 0 {
		data.RefCount--
	}
	if data.RefCount > 0 {
		r.spans.Inner[e.ID] = data
		return nil
	}

	if span, ok := r.local.Inner[e.ID]; ok {
		r.host.Close(span)
		delete(r.local.Inner, e.ID)
	}
	delete(r.spans.Inner, e.ID)
	return nil
}

func (r *Receiver) receiveNewEvent(e NewEventEvent) error {
	site, ok := r.metadata.Inner[e.MetadataID]
	if !ok {
		return &UnknownMetadataIDError{ID: e.MetadataID}
	}
	if e.Parent != nil {
		if _, ok := r.spans.Inner[*e.Parent]; !ok {
			return &UnknownSpanIDError{ID: *e.Parent}
		}
	}
	if n := e.Values.Len(); n > maxFields {
		return &TooManyValuesError{Actual: n, Max: maxFields}
	}

	var parent HostSpan
	if e.Parent != nil {
		reified, err := r.reify(*e.Parent)
		if err != nil {
			return err
		}
		parent = reified
	}
	r.host.Event(site, parent, fieldsOf(e.Values))
	logAtLevel(r.log, site.Level, "tunnel: event %q at %s", site.Name, site.Target)
	return nil
}

// logAtLevel writes a diagnostic line through log at the severity implied
// by level's SlogLevel mapping, so an ERROR-level tunnelled event shows up
// as an error in the receiver's own logs rather than at a level fixed by
// the call site.
func logAtLevel(log logger, level TracingLevel, format string, args ...any) {
	switch level.SlogLevel() {
	case slog.LevelError:
		log.Error(format, args...)
	case slog.LevelWarn:
		log.Warn(format, args...)
	default:
		log.Debug(format, args...)
	}
}

// reify returns the host span handle for id, lazily opening it (and any
// missing ancestors, root-first) from PersistedSpans if it is not yet in
// LocalSpans.
func (r *Receiver) reify(id RawSpanID) (HostSpan, error) {
	if span, ok := r.local.Inner[id]; ok {
		return span, nil
	}

	data, ok := r.spans.Inner[id]
	if !ok {
		return nil, &UnknownSpanIDError{ID: id}
	}
	site, ok := r.metadata.Inner[data.MetadataID]
	if !ok {
		return nil, &UnknownMetadataIDError{ID: data.MetadataID}
	}

	var parent HostSpan
	if data.ParentID != nil {
		reified, err := r.reify(*data.ParentID)
		if err != nil {
			return nil, err
		}
		parent = reified
	}

	span := r.host.NewSpan(site, parent, fieldsOf(data.Values))
	r.local.Inner[id] = span
	return span, nil
}

// PersistMetadata snapshots all call-site data observed so far into dst.
func (r *Receiver) PersistMetadata(dst *PersistedMetadata) {
	for id, data := range r.metadata.Inner {
		dst.Inner[id] = data
	}
}

// PersistSpans returns the current open-span table, a reference to the same
// PersistedSpans this Receiver has been mutating: its authority over that
// table ends once the caller starts a new session from it.
func (r *Receiver) PersistSpans() *PersistedSpans {
	return r.spans
}

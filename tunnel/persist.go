// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

// PersistedMetadata is the durable mapping from MetadataID to CallSiteData
// observed so far. It is owned by the caller, not the Receiver: the
// Receiver only borrows it for the duration of a session.
type PersistedMetadata struct {
	Inner map[MetadataID]CallSiteData
}

// NewPersistedMetadata returns an empty, ready-to-use PersistedMetadata.
func NewPersistedMetadata() *PersistedMetadata {
	return &PersistedMetadata{Inner: make(map[MetadataID]CallSiteData)}
}

// SpanData is the durable record of a single open span: the call site it
// was created at, its parent (if any), its guest-side reference count, and
// its current field values.
type SpanData struct {
	MetadataID MetadataID
	ParentID   *RawSpanID
	RefCount   uint32
	Values     *TracedValues[string]
}

// PersistedSpans is the durable table of every span currently open on the
// guest side. It is owned by the caller; the Receiver borrows it mutably
// for the duration of a session.
type PersistedSpans struct {
	Inner map[RawSpanID]SpanData
}

// NewPersistedSpans returns an empty, ready-to-use PersistedSpans.
func NewPersistedSpans() *PersistedSpans {
	return &PersistedSpans{Inner: make(map[RawSpanID]SpanData)}
}

// LocalSpans is the session-local mapping from RawSpanID to the host span
// handle reified from it. It is never persisted; a new session starts with
// an empty LocalSpans and rebuilds entries lazily from PersistedSpans on
// first reference.
type LocalSpans struct {
	Inner map[RawSpanID]HostSpan
}

// NewLocalSpans returns an empty, ready-to-use LocalSpans.
func NewLocalSpans() *LocalSpans {
	return &LocalSpans{Inner: make(map[RawSpanID]HostSpan)}
}

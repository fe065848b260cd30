// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import "fmt"

// ReceiveError is the exhaustive set of ways a TracingEvent can fail
// validation in TryReceive. Each concrete type also satisfies the standard
// error interface, so callers can use errors.As to discriminate.
type ReceiveError interface {
	error
	isReceiveError()
}

// UnknownMetadataIDError reports that an event referenced a MetadataID with
// no prior NewCallSite registration.
type UnknownMetadataIDError struct {
	ID MetadataID
}

func (e *UnknownMetadataIDError) Error() string {
	return fmt.Sprintf("tunnel: unknown metadata id %d", e.ID)
}

func (*UnknownMetadataIDError) isReceiveError() {}

// UnknownSpanIDError reports that an event referenced a RawSpanID with no
// corresponding entry in PersistedSpans (never announced, or already
// dropped).
type UnknownSpanIDError struct {
	ID RawSpanID
}

func (e *UnknownSpanIDError) Error() string {
	return fmt.Sprintf("tunnel: unknown span id %d", e.ID)
}

func (*UnknownSpanIDError) isReceiveError() {}

// TooManyValuesError reports that a NewSpan, ValuesRecorded or NewEvent
// carried more than Max fields.
type TooManyValuesError struct {
	Actual int
	Max    int
}

func (e *TooManyValuesError) Error() string {
	return fmt.Sprintf("tunnel: too many values: %d exceeds max of %d", e.Actual, e.Max)
}

func (*TooManyValuesError) isReceiveError() {}

var (
	_ ReceiveError = (*UnknownMetadataIDError)(nil)
	_ ReceiveError = (*UnknownSpanIDError)(nil)
	_ ReceiveError = (*TooManyValuesError)(nil)
)

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package tunnel

import (
	"fmt"
	"log/slog"
)

// MetadataID is a stable handle to exactly one CallSiteData for the lifetime
// of the guest process. It may be reused across host sessions only if
// PersistedMetadata preserves the binding.
type MetadataID uint64

// RawSpanID is a guest-assigned, monotonically increasing span identifier.
type RawSpanID uint64

// CallSiteKind distinguishes a span call site from an event call site.
type CallSiteKind uint8

const (
	CallSiteSpan CallSiteKind = iota
	CallSiteEvent
)

func (k CallSiteKind) String() string {
	if k == CallSiteEvent {
		return "event"
	}
	return "span"
}

// TracingLevel mirrors the five standard tracing severities, ordered from
// most to least severe.
type TracingLevel uint8

const (
	LevelError TracingLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l TracingLevel) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return fmt.Sprintf("TracingLevel(%d)", uint8(l))
	}
}

// CallSiteData is an immutable, per-call-site descriptor: the fields a
// span/event's name, source location and declared field names that the
// subscriber provided at registration time.
type CallSiteData struct {
	Kind       CallSiteKind `json:"kind"`
	Name       string       `json:"name"`
	Target     string       `json:"target"`
	ModulePath *string      `json:"module_path,omitempty"`
	File       *string      `json:"file,omitempty"`
	Line       *uint32      `json:"line,omitempty"`
	Level      TracingLevel `json:"level"`
	// Fields lists the declared field names, in declaration order, that a
	// span or event at this call site may carry.
	Fields []string `json:"fields"`
}

// Equal reports whether c and other describe the same call site, including
// optional fields.
func (c CallSiteData) Equal(other CallSiteData) bool {
	if c.Kind != other.Kind || c.Name != other.Name || c.Target != other.Target || c.Level != other.Level {
		return false
	}
	if !equalOptStr(c.ModulePath, other.ModulePath) || !equalOptStr(c.File, other.File) {
		return false
	}
	if !equalOptUint32(c.Line, other.Line) {
		return false
	}
	if len(c.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range c.Fields {
		if other.Fields[i] != f {
			return false
		}
	}
	return true
}

// HasField reports whether name is among c's declared fields.
func (c CallSiteData) HasField(name string) bool {
	for _, f := range c.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// SlogLevel maps l onto log/slog's severity scale, so a diagnostic logged
// about a tunnelled span or event can be emitted at a level matching the
// level it originally carried rather than a level fixed by the logging
// call site.
func (l TracingLevel) SlogLevel() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug, LevelTrace:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func equalOptStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalOptUint32(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

package capture

import (
	"fmt"

	"github.com/tracetunnel/tracetunnel/capture/predicates"
)

// ScanSpans returns a Scanner over every span in the guard's storage.
func (g *Guard) ScanSpans() predicates.Scanner[CapturedSpan] {
	return predicates.NewScanner(g.AllSpans(), "spans")
}

// ScanRootSpans returns a Scanner over every root span in the guard's
// storage.
func (g *Guard) ScanRootSpans() predicates.Scanner[CapturedSpan] {
	return predicates.NewScanner(g.RootSpans(), "root spans")
}

// ScanEvents returns a Scanner over every event in the guard's storage.
func (g *Guard) ScanEvents() predicates.Scanner[CapturedEvent] {
	return predicates.NewScanner(g.AllEvents(), "events")
}

// ScanChildren returns a Scanner over this span's direct children.
func (s CapturedSpan) ScanChildren() predicates.Scanner[CapturedSpan] {
	return predicates.NewScanner(s.Children(), fmt.Sprintf("child spans of %s", s))
}

// ScanEvents returns a Scanner over this span's attached events.
func (s CapturedSpan) ScanEvents() predicates.Scanner[CapturedEvent] {
	return predicates.NewScanner(s.Events(), fmt.Sprintf("events of %s", s))
}

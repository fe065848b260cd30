// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

// Package telemetry exposes Prometheus metrics describing tunnel.Receiver
// health: throughput, validation errors by kind, and open-span pressure.
// It is intentionally separate from the tunnel package itself — nothing in
// tunnel imports telemetry — so a caller that doesn't want a Prometheus
// dependency can ignore this package entirely.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tracetunnel/tracetunnel/tunnel"
)

// Recorder collects Receiver metrics under a given Prometheus registerer.
type Recorder struct {
	eventsReceived *prometheus.CounterVec
	receiveErrors  *prometheus.CounterVec
	spansOpen      prometheus.Gauge
}

// NewRecorder registers tracetunnel's metrics against reg. Pass
// prometheus.DefaultRegisterer to use the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across runs.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		eventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracetunnel",
			Name:      "events_received_total",
			Help:      "Total number of TracingEvents processed by a Receiver, by event kind.",
		}, []string{"kind"}),
		receiveErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracetunnel",
			Name:      "receive_errors_total",
			Help:      "Total number of TracingEvents dropped by Receiver.Receive, by error kind.",
		}, []string{"error_kind"}),
		spansOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tracetunnel",
			Name:      "spans_open",
			Help:      "Number of spans currently present in PersistedSpans.",
		}),
	}
}

// ObserveEvent increments the received-event counter for event's kind.
func (r *Recorder) ObserveEvent(event tunnel.TracingEvent) {
	r.eventsReceived.WithLabelValues(eventKindLabel(event.Kind())).Inc()
}

// ObserveError increments the receive-error counter for err's kind.
func (r *Recorder) ObserveError(err tunnel.ReceiveError) {
	r.receiveErrors.WithLabelValues(errorKindLabel(err)).Inc()
}

// SetSpansOpen reports the current size of PersistedSpans.
func (r *Recorder) SetSpansOpen(n int) {
	r.spansOpen.Set(float64(n))
}

func eventKindLabel(kind tunnel.EventKind) string {
	switch kind {
	case tunnel.EventNewCallSite:
		return "new_call_site"
	case tunnel.EventNewSpan:
		return "new_span"
	case tunnel.EventValuesRecorded:
		return "values_recorded"
	case tunnel.EventSpanEntered:
		return "span_entered"
	case tunnel.EventSpanExited:
		return "span_exited"
	case tunnel.EventSpanCloned:
		return "span_cloned"
	case tunnel.EventSpanDropped:
		return "span_dropped"
	case tunnel.EventNewEvent:
		return "new_event"
	default:
		return "unknown"
	}
}

func errorKindLabel(err tunnel.ReceiveError) string {
	switch err.(type) {
	case *tunnel.UnknownMetadataIDError:
		return "unknown_metadata_id"
	case *tunnel.UnknownSpanIDError:
		return "unknown_span_id"
	case *tunnel.TooManyValuesError:
		return "too_many_values"
	default:
		return "unknown"
	}
}

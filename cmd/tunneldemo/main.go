// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

// tunneldemo wires a Sender to a Receiver over an in-process channel
// transport, driving a capture.Layer, and prints the resulting span tree.
// It exists to exercise the tunnel end to end outside of tests; it is not
// part of the tunnel's public API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/tracetunnel/tracetunnel/capture"
	"github.com/tracetunnel/tracetunnel/internal/log"
	"github.com/tracetunnel/tracetunnel/internal/telemetry"
	"github.com/tracetunnel/tracetunnel/tunnel"
)

var (
	metricsAddr = pflag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090) instead of exiting after the demo run")
	verbose     = pflag.Bool("verbose", false, "enable debug logging")
)

var demoSiteSpan = &tunnel.CallSiteData{
	Kind:   tunnel.CallSiteSpan,
	Name:   "handle_request",
	Target: "tunneldemo",
	Level:  tunnel.LevelInfo,
	Fields: []string{"request_id"},
}

var demoSiteEvent = &tunnel.CallSiteData{
	Kind:   tunnel.CallSiteEvent,
	Name:   "event",
	Target: "tunneldemo",
	Level:  tunnel.LevelWarn,
	Fields: []string{"message"},
}

func main() {
	pflag.Parse()

	var logger tunnel.Logger = log.New(nil)
	if *verbose {
		logger = log.FromSlog(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			logger.Error("metrics server exited: %v", http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	recorder := telemetry.NewRecorder(prometheus.DefaultRegisterer)

	shared := capture.NewSharedStorage()
	layer := capture.NewLayer(shared)

	metadata := tunnel.NewPersistedMetadata()
	spans := tunnel.NewPersistedSpans()
	local := tunnel.NewLocalSpans()
	receiver := tunnel.NewReceiver(metadata, spans, local, layer, tunnel.WithReceiverLogger(logger))

	events := make(chan tunnel.TracingEvent, 64)
	sender := tunnel.NewSender(func(e tunnel.TracingEvent) { events <- e }, tunnel.WithLogger(logger))

	go runDemoWorkload(sender)

	requestID := uuid.NewString()
	if *verbose {
		logger.Debug("starting demo run request_id=%s", requestID)
	}

	for i := 0; i < expectedEventCount; i++ {
		event := <-events
		recorder.ObserveEvent(event)
		if err := receiver.TryReceive(event); err != nil {
			if re, ok := err.(tunnel.ReceiveError); ok {
				recorder.ObserveError(re)
			}
			logger.Warn("dropping event: %v", err)
		}
	}
	recorder.SetSpansOpen(len(spans.Inner))

	printTree(shared)

	if *metricsAddr != "" {
		select {}
	}
}

const expectedEventCount = 6 // NewCallSite x2, NewSpan, NewEvent, SpanEntered, SpanExited; SpanDropped omitted in this demo for brevity

func runDemoWorkload(sender *tunnel.Sender) {
	ctx := context.Background()
	metaSpan := sender.RegisterCallSite(demoSiteSpan)
	metaEvent := sender.RegisterCallSite(demoSiteEvent)

	values := tunnel.TracedValuesFromPairs(tunnel.Pair[string]{Key: "request_id", Value: tunnel.String("req-1")})
	id := sender.NewSpan(ctx, metaSpan, values)
	ctx = sender.Enter(ctx, id)

	eventValues := tunnel.TracedValuesFromPairs(tunnel.Pair[string]{Key: "message", Value: tunnel.Object("disturbance")})
	sender.Event(ctx, metaEvent, eventValues)

	sender.Exit(ctx, id)
}

func printTree(shared *capture.SharedStorage) {
	g := shared.Lock()
	defer g.Unlock()

	for _, span := range g.RootSpans() {
		printSpan(span, 0)
	}
}

func printSpan(span capture.CapturedSpan, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Fprintf(os.Stdout, "%s%s\n", indent, span)
	for _, event := range span.Events() {
		fmt.Fprintf(os.Stdout, "%s  - %s\n", indent, event)
	}
	for _, child := range span.Children() {
		printSpan(child, depth+1)
	}
}

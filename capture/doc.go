// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

// Package capture implements an in-process tunnel.HostSubscriber that
// materializes every span and event it observes into a queryable arena, for
// use in tests and introspection. Storage is shared-by-mutex: Layer's write
// callbacks and SharedStorage's read guard contend for the same lock, never
// held recursively.
package capture

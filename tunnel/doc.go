// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

// Package tunnel provides the infrastructure for tunnelling tracing spans and
// events across an API boundary: a guest program emits structured tracing
// operations, a Sender converts them into a stable, serializable event log,
// and a Receiver on the other side reconstructs equivalent spans against
// whatever host tracing runtime it is wired to.
//
// The receiver is built to survive restarts: long-lived spans whose
// lifetimes span multiple host sessions are persisted in PersistedMetadata
// and PersistedSpans and rebuilt lazily on first reference in a new session.
package tunnel

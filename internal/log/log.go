// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2024 The tracetunnel authors.

// Package log is the ambient structured logger used across tracetunnel's
// own packages (not the tracing data they carry). It wraps logrus the way
// the teacher wraps its own backend: a small Logger interface callers can
// substitute in tests, with a logrus-backed default.
package log

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the minimal diagnostic sink consumed across tracetunnel.
// tunnel.Logger is a separate, structurally-identical interface; the two
// packages don't share an import so a caller gets to pick one of each
// independently, or pass the same concrete *StdLogger for both.
type Logger interface {
	Debug(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// StdLogger is the default Logger, backed by a logrus.Logger writing to
// stderr in text format.
type StdLogger struct {
	entry *logrus.Entry
}

// New returns a StdLogger with the given fields attached to every line it
// emits.
func New(fields logrus.Fields) *StdLogger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &StdLogger{entry: base.WithFields(fields)}
}

var _ Logger = (*StdLogger)(nil)

func (l *StdLogger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *StdLogger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *StdLogger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }

// With returns a StdLogger sharing this one's backend with extra fields
// merged in, for per-component loggers (e.g. "component": "receiver").
func (l *StdLogger) With(fields logrus.Fields) *StdLogger {
	return &StdLogger{entry: l.entry.WithFields(fields)}
}

// slogLogger adapts a *slog.Logger into Logger, for a caller already
// standardized on log/slog that wants to pass it to WithLogger or
// WithReceiverLogger without going through logrus.
type slogLogger struct {
	logger *slog.Logger
}

// FromSlog wraps logger as a Logger.
func FromSlog(logger *slog.Logger) Logger {
	return &slogLogger{logger: logger}
}

var _ Logger = (*slogLogger)(nil)

func (l *slogLogger) Debug(format string, args ...any) { l.logger.Debug(fmt.Sprintf(format, args...)) }
func (l *slogLogger) Warn(format string, args ...any)  { l.logger.Warn(fmt.Sprintf(format, args...)) }
func (l *slogLogger) Error(format string, args ...any) { l.logger.Error(fmt.Sprintf(format, args...)) }

package eventstore

import (
	"context"
	"time"
)

// Logger interface for SQL query logging, operational messages, warnings, and error reporting.
//
// Engines accept any implementation via their WithLogger option; without one they stay silent.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger is the context-aware variant of Logger. Implementations can
// pull trace or tenant correlation out of the context and attach it to every
// line. When both loggers are configured the engines prefer this one for
// messages emitted inside an operation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting event store performance and operational metrics.
//
// This follows a dependency-free pattern: the store never imports a metrics backend,
// users integrate whichever APM they run by implementing this interface.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
}

// Metric names emitted by the engines.
const (
	LoadDurationMetric        = "eventstore_load_duration"
	AppendDurationMetric      = "eventstore_append_duration"
	ConcurrencyConflictMetric = "eventstore_concurrency_conflicts"
)

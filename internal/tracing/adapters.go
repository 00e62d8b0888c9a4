package tracing

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/vmgatelabs/vmgate/internal/tenant"
)

// ZerologLogger implements eventstore.Logger on a zerolog logger. The store
// emits slog-style key/value pairs; they become structured fields.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a store logger writing through the given logger.
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// Debug implements eventstore.Logger.
func (l *ZerologLogger) Debug(msg string, args ...any) {
	appendFields(l.logger.Debug(), args).Msg(msg)
}

// Info implements eventstore.Logger.
func (l *ZerologLogger) Info(msg string, args ...any) {
	appendFields(l.logger.Info(), args).Msg(msg)
}

// Warn implements eventstore.Logger.
func (l *ZerologLogger) Warn(msg string, args ...any) {
	appendFields(l.logger.Warn(), args).Msg(msg)
}

// Error implements eventstore.Logger.
func (l *ZerologLogger) Error(msg string, args ...any) {
	appendFields(l.logger.Error(), args).Msg(msg)
}

// ZerologContextualLogger implements eventstore.ContextualLogger. When the
// context carries a New Relic transaction, its trace and span ids are added
// to every line, which joins store logs with APM traces. An ambient tenant
// is added the same way.
type ZerologContextualLogger struct {
	logger zerolog.Logger
}

// NewZerologContextualLogger creates a context-aware store logger.
func NewZerologContextualLogger(logger zerolog.Logger) *ZerologContextualLogger {
	return &ZerologContextualLogger{logger: logger}
}

// DebugContext implements eventstore.ContextualLogger.
func (l *ZerologContextualLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.logger.Debug(), msg, args)
}

// InfoContext implements eventstore.ContextualLogger.
func (l *ZerologContextualLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.logger.Info(), msg, args)
}

// WarnContext implements eventstore.ContextualLogger.
func (l *ZerologContextualLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.logger.Warn(), msg, args)
}

// ErrorContext implements eventstore.ContextualLogger.
func (l *ZerologContextualLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.logger.Error(), msg, args)
}

func (l *ZerologContextualLogger) emit(ctx context.Context, event *zerolog.Event, msg string, args []any) {
	if txn := newrelic.FromContext(ctx); txn != nil {
		metadata := txn.GetTraceMetadata()
		if metadata.TraceID != "" {
			event = event.Str("traceId", metadata.TraceID)
		}

		if metadata.SpanID != "" {
			event = event.Str("spanId", metadata.SpanID)
		}
	}

	if t, ok := tenant.FromContext(ctx); ok {
		event = event.Str("tenantId", t.ID)
	}

	appendFields(event, args).Msg(msg)
}

// appendFields turns slog-style key/value pairs into zerolog fields. A
// dangling value without a string key is skipped rather than rejected.
func appendFields(event *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}

		event = event.Interface(key, args[i+1])
	}

	return event
}

// MetricsCollector implements eventstore.MetricsCollector by reporting New
// Relic custom metrics. Built from a disabled tracer it drops everything.
type MetricsCollector struct {
	app *newrelic.Application
}

// NewMetricsCollector creates a collector reporting through the tracer's
// application.
func NewMetricsCollector(tracer *Tracer) *MetricsCollector {
	if !tracer.Enabled() {
		return &MetricsCollector{}
	}

	return &MetricsCollector{app: tracer.app}
}

// RecordDuration implements eventstore.MetricsCollector. Durations land in
// milliseconds; custom metrics carry no dimensions, so labels are dropped.
func (c *MetricsCollector) RecordDuration(metric string, duration time.Duration, _ map[string]string) {
	if c.app == nil {
		return
	}

	c.app.RecordCustomMetric(metric, duration.Seconds()*1000)
}

// IncrementCounter implements eventstore.MetricsCollector.
func (c *MetricsCollector) IncrementCounter(metric string, _ map[string]string) {
	if c.app == nil {
		return
	}

	c.app.RecordCustomMetric(metric, 1)
}

package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/vmgatelabs/vmgate/eventstore"
)

const (
	logMsgSQLExecuted = "executed sql for: "
	logMsgOperation   = "eventstore operation: "
	logAttrDurationMS = "duration_ms"
	logAttrQuery      = "query"
)

// logQueryWithDuration logs SQL queries with execution time at debug level if a logger is configured.
func (es EventStore) logQueryWithDuration(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
) {

	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery)

	case es.logger != nil:
		es.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (es EventStore) logOperation(ctx context.Context, action string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)

	case es.logger != nil:
		es.logger.Info(logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level if a logger is configured.
func (es EventStore) logWarn(ctx context.Context, message string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.WarnContext(ctx, message, args...)

	case es.logger != nil:
		es.logger.Warn(message, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (es EventStore) logError(
	ctx context.Context,
	message string,
	err error,
	args ...any,
) {

	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.ErrorContext(ctx, message, allArgs...)

	case es.logger != nil:
		es.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es EventStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordDuration records an operation duration if a metrics collector is configured.
func (es EventStore) recordDuration(metric string, duration time.Duration) {
	if es.metricsCollector != nil {
		es.metricsCollector.RecordDuration(metric, duration, nil)
	}
}

// recordConcurrencyConflict counts a detected concurrency conflict if a metrics collector is configured.
func (es EventStore) recordConcurrencyConflict() {
	if es.metricsCollector != nil {
		es.metricsCollector.IncrementCounter(eventstore.ConcurrencyConflictMetric, nil)
	}
}

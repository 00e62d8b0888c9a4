package eventstore

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrencyConflict is the sentinel matched by errors.Is for any ConcurrencyConflictError.
	ErrConcurrencyConflict = errors.New("concurrency conflict, stream was advanced by another writer")

	// ErrEmptyEventsTableName is returned when an empty events table name is supplied.
	ErrEmptyEventsTableName = errors.New("empty events table name supplied")

	// ErrNilDatabaseConnection is returned when a nil database handle is supplied to a factory.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyAggregateID is returned when an operation is called with an empty aggregate id.
	ErrEmptyAggregateID = errors.New("empty aggregate id supplied")

	// ErrNoEventsToAppend is returned when Append is called without any events.
	ErrNoEventsToAppend = errors.New("at least one event must be supplied to append")

	// ErrNegativeExpectedVersion is returned when Append is called with an expected version below zero.
	ErrNegativeExpectedVersion = errors.New("expected version must not be negative")

	// ErrLoadingEventsFailed wraps I/O level failures while loading a stream.
	ErrLoadingEventsFailed = errors.New("loading events failed")

	// ErrAppendingEventsFailed wraps I/O level failures while appending events.
	ErrAppendingEventsFailed = errors.New("appending events failed")

	// ErrBuildingQueryFailed wraps failures while building SQL statements.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrScanningDBRowFailed wraps failures while scanning a database row.
	ErrScanningDBRowFailed = errors.New("scanning database row failed")

	// ErrGettingRowsAffectedFailed wraps failures while reading the rows affected count.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")

	// ErrBuildingStorableEventFailed wraps failures while building a StorableEvent from a database row.
	ErrBuildingStorableEventFailed = errors.New("building storable event from database row failed")
)

// StreamVersionInt is a type alias for int, representing the version of one aggregate's event stream.
// A stream's version equals the number of events it contains; a fresh stream has version 0.
type StreamVersionInt = int

// ConcurrencyConflictError reports that an append was rejected because the stream's
// actual version no longer matches the version the caller expected.
//
// It matches the ErrConcurrencyConflict sentinel via errors.Is, so callers can either
// check the sentinel or use errors.As to inspect the versions.
type ConcurrencyConflictError struct {
	AggregateID     string
	ExpectedVersion StreamVersionInt
	ActualVersion   StreamVersionInt
}

// Error implements the error interface.
func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf(
		"concurrency conflict for aggregate %s: expected version %d, actual version %d",
		e.AggregateID, e.ExpectedVersion, e.ActualVersion,
	)
}

// Is makes the typed error match the ErrConcurrencyConflict sentinel.
func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

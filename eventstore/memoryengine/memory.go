package memoryengine

import (
	"context"
	"sort"
	"sync"

	"github.com/vmgatelabs/vmgate/eventstore"
)

// EventStore is an in-memory event store holding per-aggregate streams in a map.
//
// It implements the same contract as the Postgres engine, including the typed
// concurrency conflict error, so command handlers can be exercised in tests and
// local development without a database. All operations are safe for concurrent
// use; appends are atomic per stream under a single mutex, which makes the
// optimistic concurrency check a true compare-and-swap.
//
// Loaded slices are copies; callers must treat the contained StorableEvents as
// immutable.
type EventStore struct {
	mu      sync.RWMutex
	streams map[string]eventstore.StorableEvents

	nextLoadErr   error
	nextAppendErr error
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		streams: make(map[string]eventstore.StorableEvents),
	}
}

// Load retrieves the full event stream of one aggregate together with its current version.
// An unknown aggregate yields an empty stream and version 0.
func (es *EventStore) Load(ctx context.Context, aggregateID string) (
	eventstore.StorableEvents,
	eventstore.StreamVersionInt,
	error,
) {

	var empty eventstore.StorableEvents

	if err := ctx.Err(); err != nil {
		return empty, 0, err
	}

	if aggregateID == "" {
		return empty, 0, eventstore.ErrEmptyAggregateID
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	if es.nextLoadErr != nil {
		err := es.nextLoadErr
		es.nextLoadErr = nil

		return empty, 0, err
	}

	stream := es.streams[aggregateID]

	eventStream := make(eventstore.StorableEvents, len(stream))
	copy(eventStream, stream)

	return eventStream, len(stream), nil
}

// Append appends events to one aggregate's stream if its current version still
// equals expectedVersion, returning the new version. On a version mismatch it
// returns an *eventstore.ConcurrencyConflictError carrying the actual version.
func (es *EventStore) Append(
	ctx context.Context,
	aggregateID string,
	expectedVersion eventstore.StreamVersionInt,
	events ...eventstore.StorableEvent,
) (eventstore.StreamVersionInt, error) {

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if aggregateID == "" {
		return 0, eventstore.ErrEmptyAggregateID
	}

	if len(events) == 0 {
		return 0, eventstore.ErrNoEventsToAppend
	}

	if expectedVersion < 0 {
		return 0, eventstore.ErrNegativeExpectedVersion
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	if es.nextAppendErr != nil {
		err := es.nextAppendErr
		es.nextAppendErr = nil

		return 0, err
	}

	stream := es.streams[aggregateID]

	if len(stream) != expectedVersion {
		return 0, &eventstore.ConcurrencyConflictError{
			AggregateID:     aggregateID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   len(stream),
		}
	}

	es.streams[aggregateID] = append(stream, events...)

	return len(es.streams[aggregateID]), nil
}

// AggregateIDs returns the distinct aggregate ids of all streams, in lexical order.
func (es *EventStore) AggregateIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	aggregateIDs := make([]string, 0, len(es.streams))
	for aggregateID := range es.streams {
		aggregateIDs = append(aggregateIDs, aggregateID)
	}

	sort.Strings(aggregateIDs)

	return aggregateIDs, nil
}

// FailNextLoadWith makes the next Load call return err instead of reading the store.
// The failure is one-shot; subsequent calls behave normally again.
func (es *EventStore) FailNextLoadWith(err error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.nextLoadErr = err
}

// FailNextAppendWith makes the next Append call return err instead of writing.
// The failure is one-shot; subsequent calls behave normally again.
func (es *EventStore) FailNextAppendWith(err error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.nextAppendErr = err
}

// Reset drops all streams and clears any injected failures.
func (es *EventStore) Reset() {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.streams = make(map[string]eventstore.StorableEvents)
	es.nextLoadErr = nil
	es.nextAppendErr = nil
}

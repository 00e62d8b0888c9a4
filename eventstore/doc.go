// Package eventstore provides core abstractions and types for event sourcing
// with per-aggregate event streams.
//
// This package defines the fundamental types used across the different event
// store engines: storable events, stream versions, and common error definitions
// including the typed ConcurrencyConflictError.
//
// Every aggregate id owns exactly one append-only stream. The stream's version
// is the number of events it contains, so the first event of a fresh aggregate
// is appended with expected version 0 and yields version 1. An append succeeds
// only when the caller's expected version equals the stream's current version;
// otherwise it fails atomically with a ConcurrencyConflictError carrying the
// actual version, and no event is written.
//
// Common usage pattern:
//
//	events, currentVersion, err := store.Load(ctx, aggregateID)
//	if err != nil {
//		// handle error
//	}
//
//	newEvent, _ := eventstore.BuildStorableEvent(eventType, time.Now(), payload, metadata)
//	newVersion, err := store.Append(ctx, aggregateID, currentVersion, newEvent)
//	if err != nil {
//		var conflict *eventstore.ConcurrencyConflictError
//		if errors.As(err, &conflict) {
//			// another writer advanced the stream to conflict.ActualVersion
//		}
//	}
package eventstore

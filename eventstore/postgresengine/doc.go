// Package postgresengine provides the PostgreSQL implementation of the event store.
//
// Events live in a single table keyed by (aggregate_id, version) where version is
// the 0-based position within the aggregate's stream. Appends are guarded by a
// conditional INSERT that compares the stream's current length to the caller's
// expected version, so optimistic concurrency needs no locks and no sequences;
// the composite primary key is the hard backstop against double writes.
//
// Key features:
//   - Multiple database adapter support (PGX with optional read replica, SQL, SQLX)
//   - Atomic event appending with typed concurrency conflict errors
//   - Configurable table name and pluggable logging/metrics
//
// Usage:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		db,
//		postgresengine.WithTableName("vm_request_events"),
//		postgresengine.WithLogger(logger),
//	)
//
//	events, currentVersion, _ := store.Load(ctx, requestID)
//	newVersion, err := store.Append(ctx, requestID, currentVersion, newEvent)
//	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
//		// reload and decide again
//	}
package postgresengine

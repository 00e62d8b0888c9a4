// Package adapters bridges the event store engine to the supported
// PostgreSQL client libraries: pgxpool.Pool, database/sql, and sqlx. Each
// adapter satisfies the small DBAdapter interface, so the engine renders
// its SQL once and stays indifferent to the connection type underneath.
//
// The pgx adapter additionally knows about an optional read replica and
// routes queries there when the calling context allows eventually
// consistent reads.
package adapters

// Package memoryengine provides an in-memory implementation of the event store
// with the same semantics as the Postgres engine: per-aggregate streams, stream
// version equal to stream length, and typed concurrency conflict errors.
//
// It is intended for tests and local development. FailNextLoadWith and
// FailNextAppendWith inject one-shot storage failures so callers can exercise
// their persistence error handling without a database.
package memoryengine

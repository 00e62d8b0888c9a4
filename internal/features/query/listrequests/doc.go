// Package listrequests implements the request list query.
//
// The query reads the denormalized projection rows on the read handle instead
// of folding event streams: listing is the hot read path and must not scale
// with stream count. A Redis read-through cache fronts the database; command
// handlers invalidate the per-tenant keys whenever the read model changes, and
// a short TTL bounds staleness when an invalidation is lost.
//
// Results are scoped to one tenant and optionally narrowed to a single status.
// The projection may lag the streams, so a record's StreamVersion tells the
// caller which version it reflects.
package listrequests

// Package projection maintains the denormalized request list read model in
// Postgres. Command handlers update it best-effort after a successful append;
// the rebuilder replays streams through the same fold the aggregate uses, so
// a lost side effect heals on the next reconcile pass.
//
// The projection is never consulted for command decisions. Writers treat
// zero matched rows (tenant isolation, projection lag) as the typed
// NotFoundError, distinct from infrastructure failures.
package projection

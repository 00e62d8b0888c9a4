// Package core contains the pure domain of the VM request platform: the domain
// events recorded for a request, the request state machine rebuilt by folding
// those events, and the DecisionResult type used by the per-feature Decide
// functions.
//
// Nothing in this package performs I/O. Handlers in internal/features load the
// history, call the feature's pure Decide function, and persist whatever it
// returns; the fold here is the single source of truth for request state.
package core

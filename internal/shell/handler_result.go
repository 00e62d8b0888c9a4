package shell

import "github.com/vmgatelabs/vmgate/eventstore"

// HandlerResult represents the outcome of a command handler execution.
// It distinguishes idempotent no-ops from appends without treating either
// as an error condition.
type HandlerResult struct {
	// EventsAppended is the number of events written by this execution.
	// Zero for idempotent operations.
	EventsAppended int

	// NewVersion is the stream version after the handler ran. For idempotent
	// operations this is the version the stream already had.
	NewVersion eventstore.StreamVersionInt

	// Idempotent indicates that the requested state transition had already
	// happened and no event was appended. This is a first-class business
	// outcome, not an error condition.
	Idempotent bool
}

// SuccessResult creates a HandlerResult for an execution that appended events.
func SuccessResult(eventsAppended int, newVersion eventstore.StreamVersionInt) HandlerResult {
	return HandlerResult{
		EventsAppended: eventsAppended,
		NewVersion:     newVersion,
		Idempotent:     false,
	}
}

// IdempotentResult creates a HandlerResult for an execution that changed nothing.
func IdempotentResult(currentVersion eventstore.StreamVersionInt) HandlerResult {
	return HandlerResult{
		EventsAppended: 0,
		NewVersion:     currentVersion,
		Idempotent:     true,
	}
}

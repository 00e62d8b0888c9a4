package cancelrequest

import (
	"github.com/vmgatelabs/vmgate/internal/core"
)

// Decide applies the cancellation rules to the reconstituted state.
// Ownership has already been checked by the handler; the state machine only
// cares about the lifecycle.
//
// Business rules:
//
//	GIVEN: an existing request
//	WHEN: CancelRequest is received
//	THEN: RequestCancelled is generated while the request is PENDING
//	IDEMPOTENCY: already CANCELLED yields zero new events
//	ERROR: InvalidStateError for every other state
func Decide(history core.DomainEvents, command Command) core.DecisionResult {
	request := core.ProjectRequest(history)

	if request.Status == core.StatusCancelled {
		return core.IdempotentDecision()
	}

	if request.Status != core.StatusPending {
		return core.ErrorDecision(&core.InvalidStateError{
			RequestID:    command.RequestID.String(),
			CurrentState: request.Status,
			Attempted:    "cancel",
		})
	}

	return core.SuccessDecision(core.BuildRequestCancelled(
		command.RequestID,
		command.TenantID,
		command.ActingUserID,
		command.Reason,
		command.OccurredAt,
	))
}

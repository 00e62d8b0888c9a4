package rejectrequest

import (
	"github.com/vmgatelabs/vmgate/internal/core"
)

// Decide applies the rejection rules to the reconstituted state.
//
// Business rules:
//
//	GIVEN: an existing request
//	WHEN: RejectRequest is received
//	THEN: RequestRejected is generated while the request is PENDING
//	IDEMPOTENCY: already REJECTED yields zero new events; the first recorded
//	             rejection reason stays authoritative
//	ERROR: InvalidStateError for every other state
func Decide(history core.DomainEvents, command Command) core.DecisionResult {
	request := core.ProjectRequest(history)

	if request.Status == core.StatusRejected {
		return core.IdempotentDecision()
	}

	if request.Status != core.StatusPending {
		return core.ErrorDecision(&core.InvalidStateError{
			RequestID:    command.RequestID.String(),
			CurrentState: request.Status,
			Attempted:    "reject",
		})
	}

	return core.SuccessDecision(core.BuildRequestRejected(
		command.RequestID,
		command.TenantID,
		command.RejectedBy,
		command.Reason,
		command.OccurredAt,
	))
}

package approverequest

import (
	"github.com/vmgatelabs/vmgate/internal/core"
)

// Decide applies the approval rules to the reconstituted state.
//
// Business rules:
//
//	GIVEN: an existing request
//	WHEN: ApproveRequest is received
//	THEN: RequestApproved is generated while the request is PENDING
//	IDEMPOTENCY: already APPROVED yields zero new events, regardless of which
//	             approver asked first; the recorded approver stays authoritative
//	ERROR: InvalidStateError for every other state
func Decide(history core.DomainEvents, command Command) core.DecisionResult {
	request := core.ProjectRequest(history)

	if request.Status == core.StatusApproved {
		return core.IdempotentDecision()
	}

	if request.Status != core.StatusPending {
		return core.ErrorDecision(&core.InvalidStateError{
			RequestID:    command.RequestID.String(),
			CurrentState: request.Status,
			Attempted:    "approve",
		})
	}

	return core.SuccessDecision(core.BuildRequestApproved(
		command.RequestID,
		command.TenantID,
		command.ApprovedBy,
		command.OccurredAt,
	))
}

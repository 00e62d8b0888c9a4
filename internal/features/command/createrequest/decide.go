package createrequest

import (
	"github.com/vmgatelabs/vmgate/internal/core"
)

// Decide determines whether a new request stream may be opened.
//
// Business rules:
//
//	GIVEN: the history for the command's request id
//	WHEN: CreateRequest is received
//	THEN: RequestCreated is generated when the stream is empty
//	IDEMPOTENCY: a non-empty stream means this create was already processed,
//	             so the command succeeds with zero new events
func Decide(history core.DomainEvents, command Command) core.DecisionResult {
	if len(history) > 0 {
		return core.IdempotentDecision()
	}

	return core.SuccessDecision(core.BuildRequestCreated(
		command.RequestID,
		command.TenantID,
		command.RequesterID,
		command.RequesterEmail,
		command.ProjectID,
		command.VMName,
		command.Size,
		command.Justification,
		command.OccurredAt,
	))
}

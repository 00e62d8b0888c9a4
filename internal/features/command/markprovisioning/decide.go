package markprovisioning

import (
	"github.com/vmgatelabs/vmgate/internal/core"
)

// Decide applies the provisioning handover rules to the reconstituted state.
//
// Business rules:
//
//	GIVEN: an existing request
//	WHEN: MarkProvisioning is received
//	THEN: ProvisioningStarted is generated while the request is APPROVED
//	IDEMPOTENCY: already PROVISIONING yields zero new events, so redelivered
//	             approval notices pass through harmlessly
//	ERROR: InvalidStateError for every other state
func Decide(history core.DomainEvents, command Command) core.DecisionResult {
	request := core.ProjectRequest(history)

	if request.Status == core.StatusProvisioning {
		return core.IdempotentDecision()
	}

	if request.Status != core.StatusApproved {
		return core.ErrorDecision(&core.InvalidStateError{
			RequestID:    command.RequestID.String(),
			CurrentState: request.Status,
			Attempted:    "mark provisioning",
		})
	}

	return core.SuccessDecision(core.BuildProvisioningStarted(
		command.RequestID,
		command.TenantID,
		command.StartedBy,
		command.OccurredAt,
	))
}

package provisionvm

import (
	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/hypervisor"
)

// DecideProvisioned decides whether a successful backend outcome may be
// recorded on the stream.
//
// Business rules:
//
//	GIVEN: an existing request
//	WHEN: the backend reported a created VM
//	THEN: VMProvisioned is generated while the request is PROVISIONING
//	IDEMPOTENCY: already READY yields zero new events; the first recorded
//	             backend coordinates stay authoritative
//	ERROR: InvalidStateError for every other state
func DecideProvisioned(
	history core.DomainEvents,
	command Command,
	outcome hypervisor.ProvisioningResult,
) core.DecisionResult {
	request := core.ProjectRequest(history)

	if request.Status == core.StatusReady {
		return core.IdempotentDecision()
	}

	if request.Status != core.StatusProvisioning {
		return core.ErrorDecision(&core.InvalidStateError{
			RequestID:    command.RequestID.String(),
			CurrentState: request.Status,
			Attempted:    "record provisioned vm",
		})
	}

	return core.SuccessDecision(core.BuildVMProvisioned(
		command.RequestID,
		command.TenantID,
		outcome.HypervisorRef,
		outcome.IPAddress,
		outcome.Hostname,
		outcome.Warning,
		command.OccurredAt,
	))
}

// DecideFailed decides whether a permanent provisioning failure may be
// recorded on the stream. The retry count grows with every recorded attempt.
//
// Business rules:
//
//	GIVEN: an existing request
//	WHEN: the backend or the resource mapping failed permanently
//	THEN: ProvisioningFailed is generated while the request is PROVISIONING
//	IDEMPOTENCY: already FAILED yields zero new events
//	ERROR: InvalidStateError for every other state
func DecideFailed(
	history core.DomainEvents,
	command Command,
	reason string,
	retriable bool,
) core.DecisionResult {
	request := core.ProjectRequest(history)

	if request.Status == core.StatusFailed {
		return core.IdempotentDecision()
	}

	if request.Status != core.StatusProvisioning {
		return core.ErrorDecision(&core.InvalidStateError{
			RequestID:    command.RequestID.String(),
			CurrentState: request.Status,
			Attempted:    "record provisioning failure",
		})
	}

	return core.SuccessDecision(core.BuildProvisioningFailed(
		command.RequestID,
		command.TenantID,
		reason,
		retriable,
		request.RetryCount+1,
		command.OccurredAt,
		command.OccurredAt,
	))
}

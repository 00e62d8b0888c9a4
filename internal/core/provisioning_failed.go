package core

import (
	"time"

	"github.com/google/uuid"
)

// ProvisioningFailedEventType is the event type identifier.
const ProvisioningFailedEventType = "ProvisioningFailed"

// ProvisioningFailed records that provisioning gave up on a request: either the
// backend reported a non-retriable failure or the retry budget was exhausted.
// RetryCount and LastAttemptAt capture what was tried; scheduling further retries
// is not this aggregate's concern.
type ProvisioningFailed struct {
	EventType     EventTypeString
	RequestID     RequestIDString
	TenantID      TenantIDString
	Reason        string
	Retriable     bool
	RetryCount    int
	LastAttemptAt OccurredAtTS
	OccurredAt    OccurredAtTS
}

// BuildProvisioningFailed creates a new ProvisioningFailed event.
func BuildProvisioningFailed(
	requestID uuid.UUID,
	tenantID uuid.UUID,
	reason string,
	retriable bool,
	retryCount int,
	lastAttemptAt time.Time,
	occurredAt time.Time,
) ProvisioningFailed {

	event := ProvisioningFailed{
		EventType:     ProvisioningFailedEventType,
		RequestID:     requestID.String(),
		TenantID:      tenantID.String(),
		Reason:        reason,
		Retriable:     retriable,
		RetryCount:    retryCount,
		LastAttemptAt: ToOccurredAt(lastAttemptAt),
		OccurredAt:    ToOccurredAt(occurredAt),
	}

	return event
}

// IsEventType returns the event type identifier.
func (e ProvisioningFailed) IsEventType() string {
	return ProvisioningFailedEventType
}

// HasOccurredAt returns when this event occurred.
func (e ProvisioningFailed) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// IsFailureEvent returns true since this event records a failure condition.
func (e ProvisioningFailed) IsFailureEvent() bool {
	return true
}

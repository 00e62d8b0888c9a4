package core

import (
	"time"

	"github.com/google/uuid"
)

// ProvisioningStartedEventType is the event type identifier.
const ProvisioningStartedEventType = "ProvisioningStarted"

// ProvisioningStarted records that the saga picked up an approved request
// and began provisioning the VM.
type ProvisioningStarted struct {
	EventType  EventTypeString
	RequestID  RequestIDString
	TenantID   TenantIDString
	StartedBy  UserIDString
	OccurredAt OccurredAtTS
}

// BuildProvisioningStarted creates a new ProvisioningStarted event.
func BuildProvisioningStarted(requestID uuid.UUID, tenantID uuid.UUID, startedBy uuid.UUID, occurredAt time.Time) ProvisioningStarted {
	event := ProvisioningStarted{
		EventType:  ProvisioningStartedEventType,
		RequestID:  requestID.String(),
		TenantID:   tenantID.String(),
		StartedBy:  startedBy.String(),
		OccurredAt: ToOccurredAt(occurredAt),
	}

	return event
}

// IsEventType returns the event type identifier.
func (e ProvisioningStarted) IsEventType() string {
	return ProvisioningStartedEventType
}

// HasOccurredAt returns when this event occurred.
func (e ProvisioningStarted) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// IsFailureEvent returns false since this event represents a successful operation.
func (e ProvisioningStarted) IsFailureEvent() bool {
	return false
}

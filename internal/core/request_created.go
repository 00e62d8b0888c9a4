package core

import (
	"time"

	"github.com/google/uuid"
)

// RequestCreatedEventType is the event type identifier.
const RequestCreatedEventType = "RequestCreated"

// RequestCreated records that a user submitted a VM request for approval.
// It opens the request's stream; the request starts out PENDING.
type RequestCreated struct {
	EventType      EventTypeString
	RequestID      RequestIDString
	TenantID       TenantIDString
	RequesterID    UserIDString
	RequesterEmail string
	ProjectID      ProjectIDString
	VMName         string
	Size           SizeString
	Justification  string
	OccurredAt     OccurredAtTS
}

// BuildRequestCreated creates a new RequestCreated event.
func BuildRequestCreated(
	requestID uuid.UUID,
	tenantID uuid.UUID,
	requesterID uuid.UUID,
	requesterEmail string,
	projectID uuid.UUID,
	vmName string,
	size SizeString,
	justification string,
	occurredAt time.Time,
) RequestCreated {

	event := RequestCreated{
		EventType:      RequestCreatedEventType,
		RequestID:      requestID.String(),
		TenantID:       tenantID.String(),
		RequesterID:    requesterID.String(),
		RequesterEmail: requesterEmail,
		ProjectID:      projectID.String(),
		VMName:         vmName,
		Size:           size,
		Justification:  justification,
		OccurredAt:     ToOccurredAt(occurredAt),
	}

	return event
}

// IsEventType returns the event type identifier.
func (e RequestCreated) IsEventType() string {
	return RequestCreatedEventType
}

// HasOccurredAt returns when this event occurred.
func (e RequestCreated) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// IsFailureEvent returns false since this event represents a successful operation.
func (e RequestCreated) IsFailureEvent() bool {
	return false
}

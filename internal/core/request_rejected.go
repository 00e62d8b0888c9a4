package core

import (
	"time"

	"github.com/google/uuid"
)

// RequestRejectedEventType is the event type identifier.
const RequestRejectedEventType = "RequestRejected"

// RequestRejected records that an approver declined a pending VM request.
// The reason is mandatory; approvers must tell requesters why.
type RequestRejected struct {
	EventType  EventTypeString
	RequestID  RequestIDString
	TenantID   TenantIDString
	RejectedBy UserIDString
	Reason     string
	OccurredAt OccurredAtTS
}

// BuildRequestRejected creates a new RequestRejected event.
func BuildRequestRejected(requestID uuid.UUID, tenantID uuid.UUID, rejectedBy uuid.UUID, reason string, occurredAt time.Time) RequestRejected {
	event := RequestRejected{
		EventType:  RequestRejectedEventType,
		RequestID:  requestID.String(),
		TenantID:   tenantID.String(),
		RejectedBy: rejectedBy.String(),
		Reason:     reason,
		OccurredAt: ToOccurredAt(occurredAt),
	}

	return event
}

// IsEventType returns the event type identifier.
func (e RequestRejected) IsEventType() string {
	return RequestRejectedEventType
}

// HasOccurredAt returns when this event occurred.
func (e RequestRejected) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// IsFailureEvent returns false since this event represents a successful operation.
func (e RequestRejected) IsFailureEvent() bool {
	return false
}

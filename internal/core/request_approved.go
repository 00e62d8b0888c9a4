package core

import (
	"time"

	"github.com/google/uuid"
)

// RequestApprovedEventType is the event type identifier.
const RequestApprovedEventType = "RequestApproved"

// RequestApproved records that an approver accepted a pending VM request.
type RequestApproved struct {
	EventType  EventTypeString
	RequestID  RequestIDString
	TenantID   TenantIDString
	ApprovedBy UserIDString
	OccurredAt OccurredAtTS
}

// BuildRequestApproved creates a new RequestApproved event.
func BuildRequestApproved(requestID uuid.UUID, tenantID uuid.UUID, approvedBy uuid.UUID, occurredAt time.Time) RequestApproved {
	event := RequestApproved{
		EventType:  RequestApprovedEventType,
		RequestID:  requestID.String(),
		TenantID:   tenantID.String(),
		ApprovedBy: approvedBy.String(),
		OccurredAt: ToOccurredAt(occurredAt),
	}

	return event
}

// IsEventType returns the event type identifier.
func (e RequestApproved) IsEventType() string {
	return RequestApprovedEventType
}

// HasOccurredAt returns when this event occurred.
func (e RequestApproved) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// IsFailureEvent returns false since this event represents a successful operation.
func (e RequestApproved) IsFailureEvent() bool {
	return false
}

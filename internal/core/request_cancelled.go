package core

import (
	"time"

	"github.com/google/uuid"
)

// RequestCancelledEventType is the event type identifier.
const RequestCancelledEventType = "RequestCancelled"

// RequestCancelled records that the requester withdrew their own pending request.
type RequestCancelled struct {
	EventType   EventTypeString
	RequestID   RequestIDString
	TenantID    TenantIDString
	CancelledBy UserIDString
	Reason      string // optional
	OccurredAt  OccurredAtTS
}

// BuildRequestCancelled creates a new RequestCancelled event. The reason may be empty.
func BuildRequestCancelled(requestID uuid.UUID, tenantID uuid.UUID, cancelledBy uuid.UUID, reason string, occurredAt time.Time) RequestCancelled {
	event := RequestCancelled{
		EventType:   RequestCancelledEventType,
		RequestID:   requestID.String(),
		TenantID:    tenantID.String(),
		CancelledBy: cancelledBy.String(),
		Reason:      reason,
		OccurredAt:  ToOccurredAt(occurredAt),
	}

	return event
}

// IsEventType returns the event type identifier.
func (e RequestCancelled) IsEventType() string {
	return RequestCancelledEventType
}

// HasOccurredAt returns when this event occurred.
func (e RequestCancelled) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// IsFailureEvent returns false since this event represents a successful operation.
func (e RequestCancelled) IsFailureEvent() bool {
	return false
}

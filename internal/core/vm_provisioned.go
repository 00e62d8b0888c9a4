package core

import (
	"time"

	"github.com/google/uuid"
)

// VMProvisionedEventType is the event type identifier.
const VMProvisionedEventType = "VMProvisioned"

// VMProvisioned records that the hypervisor created the VM for a request.
// HypervisorRef is the backend-assigned identifier; ip address, hostname and
// warning are optional because not every backend reports them synchronously.
type VMProvisioned struct {
	EventType     EventTypeString
	RequestID     RequestIDString
	TenantID      TenantIDString
	HypervisorRef string
	IPAddress     string // optional
	Hostname      string // optional
	Warning       string // optional
	OccurredAt    OccurredAtTS
}

// BuildVMProvisioned creates a new VMProvisioned event.
func BuildVMProvisioned(
	requestID uuid.UUID,
	tenantID uuid.UUID,
	hypervisorRef string,
	ipAddress string,
	hostname string,
	warning string,
	occurredAt time.Time,
) VMProvisioned {

	event := VMProvisioned{
		EventType:     VMProvisionedEventType,
		RequestID:     requestID.String(),
		TenantID:      tenantID.String(),
		HypervisorRef: hypervisorRef,
		IPAddress:     ipAddress,
		Hostname:      hostname,
		Warning:       warning,
		OccurredAt:    ToOccurredAt(occurredAt),
	}

	return event
}

// IsEventType returns the event type identifier.
func (e VMProvisioned) IsEventType() string {
	return VMProvisionedEventType
}

// HasOccurredAt returns when this event occurred.
func (e VMProvisioned) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// IsFailureEvent returns false since this event represents a successful operation.
func (e VMProvisioned) IsFailureEvent() bool {
	return false
}

package core

// RequestStatus is the lifecycle state of a VM request, derived purely from its event stream.
//
// Transitions: PENDING → {APPROVED, REJECTED, CANCELLED}, APPROVED → PROVISIONING,
// PROVISIONING → {READY, FAILED}. Terminal states accept only idempotent repeats
// of the transition that produced them.
type RequestStatus string

const (
	// StatusNone is the status of a request whose stream does not exist yet.
	StatusNone RequestStatus = ""

	// StatusPending means the request awaits an approval decision.
	StatusPending RequestStatus = "PENDING"

	// StatusApproved means an approver accepted the request; provisioning has not started.
	StatusApproved RequestStatus = "APPROVED"

	// StatusRejected means an approver declined the request. Terminal.
	StatusRejected RequestStatus = "REJECTED"

	// StatusCancelled means the requester withdrew the request. Terminal.
	StatusCancelled RequestStatus = "CANCELLED"

	// StatusProvisioning means the saga started provisioning the VM.
	StatusProvisioning RequestStatus = "PROVISIONING"

	// StatusReady means the VM was provisioned successfully. Terminal.
	StatusReady RequestStatus = "READY"

	// StatusFailed means provisioning failed without a retry in flight. Terminal;
	// retriable hypervisor errors never reach it, they leave the request PROVISIONING.
	StatusFailed RequestStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed out of s.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusReady, StatusFailed:
		return true
	default:
		return false
	}
}

// AllStatuses lists every status a persisted request can be in, in lifecycle order.
// StatusNone is excluded: it marks a stream that does not exist.
func AllStatuses() []RequestStatus {
	return []RequestStatus{
		StatusPending,
		StatusApproved,
		StatusRejected,
		StatusCancelled,
		StatusProvisioning,
		StatusReady,
		StatusFailed,
	}
}

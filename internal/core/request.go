package core

// Request is the VM request aggregate state, rebuilt by folding a stream's domain
// events in order. The zero value represents a request that does not exist yet.
//
// The fold is pure and deterministic: replaying the same history always yields the
// same Request. It is never persisted; the stream is the source of truth and this
// struct is recomputed on every load. The stream version lives with the store, not
// here.
type Request struct {
	RequestID      RequestIDString
	TenantID       TenantIDString
	RequesterID    UserIDString
	RequesterEmail string
	ProjectID      ProjectIDString
	VMName         string
	Size           SizeString
	Justification  string
	Status         RequestStatus

	ApprovedBy      UserIDString
	RejectedBy      UserIDString
	RejectionReason string
	CancelledBy     UserIDString

	HypervisorRef    string
	IPAddress        string
	Hostname         string
	ProvisionWarning string

	FailureReason string
	RetryCount    int

	CreatedAt OccurredAtTS
	UpdatedAt OccurredAtTS
}

// Exists reports whether the history contained any events at all.
func (r Request) Exists() bool {
	return r.Status != StatusNone
}

// ProjectRequest rebuilds the request state by replaying all events from the history.
func ProjectRequest(history DomainEvents) Request {
	r := Request{}

	for _, event := range history {
		r = r.apply(event)
	}

	return r
}

// apply folds a single event into the state and returns the new state.
// Unknown event types are ignored so old streams survive schema growth.
func (r Request) apply(event DomainEvent) Request {
	switch e := event.(type) {
	case RequestCreated:
		r.RequestID = e.RequestID
		r.TenantID = e.TenantID
		r.RequesterID = e.RequesterID
		r.RequesterEmail = e.RequesterEmail
		r.ProjectID = e.ProjectID
		r.VMName = e.VMName
		r.Size = e.Size
		r.Justification = e.Justification
		r.Status = StatusPending
		r.CreatedAt = e.OccurredAt

	case RequestApproved:
		r.Status = StatusApproved
		r.ApprovedBy = e.ApprovedBy

	case RequestRejected:
		r.Status = StatusRejected
		r.RejectedBy = e.RejectedBy
		r.RejectionReason = e.Reason

	case RequestCancelled:
		r.Status = StatusCancelled
		r.CancelledBy = e.CancelledBy

	case ProvisioningStarted:
		r.Status = StatusProvisioning

	case VMProvisioned:
		r.Status = StatusReady
		r.HypervisorRef = e.HypervisorRef
		r.IPAddress = e.IPAddress
		r.Hostname = e.Hostname
		r.ProvisionWarning = e.Warning

	case ProvisioningFailed:
		r.Status = StatusFailed
		r.FailureReason = e.Reason
		r.RetryCount = e.RetryCount
	}

	r.UpdatedAt = event.HasOccurredAt()

	return r
}

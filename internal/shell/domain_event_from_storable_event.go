package shell

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/vmgatelabs/vmgate/eventstore"
	"github.com/vmgatelabs/vmgate/internal/core"
)

var (
	// ErrMappingToDomainEventFailed is returned when domain event conversion fails.
	ErrMappingToDomainEventFailed = errors.New("mapping to domain event failed")

	// ErrMappingToDomainEventUnknownEventType is returned for unrecognized event types.
	ErrMappingToDomainEventUnknownEventType = errors.New("unknown event type")
)

// DomainEventsFrom converts multiple StorableEvents to DomainEvents.
func DomainEventsFrom(storableEvents eventstore.StorableEvents) (core.DomainEvents, error) {
	domainEvents := make(core.DomainEvents, 0)

	for _, storableEvent := range storableEvents {
		domainEvent, err := DomainEventFrom(storableEvent)
		if err != nil {
			return nil, err
		}

		domainEvents = append(domainEvents, domainEvent)
	}

	return domainEvents, nil
}

// DomainEventFrom converts a StorableEvent to its corresponding DomainEvent.
func DomainEventFrom(storableEvent eventstore.StorableEvent) (core.DomainEvent, error) {
	switch storableEvent.EventType {
	case core.RequestCreatedEventType:
		return unmarshalRequestCreated(storableEvent.PayloadJSON)

	case core.RequestApprovedEventType:
		return unmarshalRequestApproved(storableEvent.PayloadJSON)

	case core.RequestRejectedEventType:
		return unmarshalRequestRejected(storableEvent.PayloadJSON)

	case core.RequestCancelledEventType:
		return unmarshalRequestCancelled(storableEvent.PayloadJSON)

	case core.ProvisioningStartedEventType:
		return unmarshalProvisioningStarted(storableEvent.PayloadJSON)

	case core.VMProvisionedEventType:
		return unmarshalVMProvisioned(storableEvent.PayloadJSON)

	case core.ProvisioningFailedEventType:
		return unmarshalProvisioningFailed(storableEvent.PayloadJSON)

	default:
		return nil, errors.Join(ErrMappingToDomainEventFailed, ErrMappingToDomainEventUnknownEventType)
	}
}

func unmarshalRequestCreated(payloadJSON []byte) (core.DomainEvent, error) {
	payload := new(core.RequestCreated)

	err := jsoniter.ConfigFastest.Unmarshal(payloadJSON, &payload)
	if err != nil {
		return core.RequestCreated{}, errors.Join(ErrMappingToDomainEventFailed, err)
	}

	return core.RequestCreated{
		EventType:      core.RequestCreatedEventType,
		RequestID:      payload.RequestID,
		TenantID:       payload.TenantID,
		RequesterID:    payload.RequesterID,
		RequesterEmail: payload.RequesterEmail,
		ProjectID:      payload.ProjectID,
		VMName:         payload.VMName,
		Size:           payload.Size,
		Justification:  payload.Justification,
		OccurredAt:     payload.OccurredAt,
	}, nil
}

func unmarshalRequestApproved(payloadJSON []byte) (core.DomainEvent, error) {
	payload := new(core.RequestApproved)

	err := jsoniter.ConfigFastest.Unmarshal(payloadJSON, &payload)
	if err != nil {
		return core.RequestApproved{}, errors.Join(ErrMappingToDomainEventFailed, err)
	}

	return core.RequestApproved{
		EventType:  core.RequestApprovedEventType,
		RequestID:  payload.RequestID,
		TenantID:   payload.TenantID,
		ApprovedBy: payload.ApprovedBy,
		OccurredAt: payload.OccurredAt,
	}, nil
}

func unmarshalRequestRejected(payloadJSON []byte) (core.DomainEvent, error) {
	payload := new(core.RequestRejected)

	err := jsoniter.ConfigFastest.Unmarshal(payloadJSON, &payload)
	if err != nil {
		return core.RequestRejected{}, errors.Join(ErrMappingToDomainEventFailed, err)
	}

	return core.RequestRejected{
		EventType:  core.RequestRejectedEventType,
		RequestID:  payload.RequestID,
		TenantID:   payload.TenantID,
		RejectedBy: payload.RejectedBy,
		Reason:     payload.Reason,
		OccurredAt: payload.OccurredAt,
	}, nil
}

func unmarshalRequestCancelled(payloadJSON []byte) (core.DomainEvent, error) {
	payload := new(core.RequestCancelled)

	err := jsoniter.ConfigFastest.Unmarshal(payloadJSON, &payload)
	if err != nil {
		return core.RequestCancelled{}, errors.Join(ErrMappingToDomainEventFailed, err)
	}

	return core.RequestCancelled{
		EventType:   core.RequestCancelledEventType,
		RequestID:   payload.RequestID,
		TenantID:    payload.TenantID,
		CancelledBy: payload.CancelledBy,
		Reason:      payload.Reason,
		OccurredAt:  payload.OccurredAt,
	}, nil
}

func unmarshalProvisioningStarted(payloadJSON []byte) (core.DomainEvent, error) {
	payload := new(core.ProvisioningStarted)

	err := jsoniter.ConfigFastest.Unmarshal(payloadJSON, &payload)
	if err != nil {
		return core.ProvisioningStarted{}, errors.Join(ErrMappingToDomainEventFailed, err)
	}

	return core.ProvisioningStarted{
		EventType:  core.ProvisioningStartedEventType,
		RequestID:  payload.RequestID,
		TenantID:   payload.TenantID,
		StartedBy:  payload.StartedBy,
		OccurredAt: payload.OccurredAt,
	}, nil
}

func unmarshalVMProvisioned(payloadJSON []byte) (core.DomainEvent, error) {
	payload := new(core.VMProvisioned)

	err := jsoniter.ConfigFastest.Unmarshal(payloadJSON, &payload)
	if err != nil {
		return core.VMProvisioned{}, errors.Join(ErrMappingToDomainEventFailed, err)
	}

	return core.VMProvisioned{
		EventType:     core.VMProvisionedEventType,
		RequestID:     payload.RequestID,
		TenantID:      payload.TenantID,
		HypervisorRef: payload.HypervisorRef,
		IPAddress:     payload.IPAddress,
		Hostname:      payload.Hostname,
		Warning:       payload.Warning,
		OccurredAt:    payload.OccurredAt,
	}, nil
}

func unmarshalProvisioningFailed(payloadJSON []byte) (core.DomainEvent, error) {
	payload := new(core.ProvisioningFailed)

	err := jsoniter.ConfigFastest.Unmarshal(payloadJSON, &payload)
	if err != nil {
		return core.ProvisioningFailed{}, errors.Join(ErrMappingToDomainEventFailed, err)
	}

	return core.ProvisioningFailed{
		EventType:     core.ProvisioningFailedEventType,
		RequestID:     payload.RequestID,
		TenantID:      payload.TenantID,
		Reason:        payload.Reason,
		Retriable:     payload.Retriable,
		RetryCount:    payload.RetryCount,
		LastAttemptAt: payload.LastAttemptAt,
		OccurredAt:    payload.OccurredAt,
	}, nil
}

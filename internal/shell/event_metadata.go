package shell

import (
	"errors"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/vmgatelabs/vmgate/eventstore"
)

// ErrMappingToEventMetadataFailed is returned when metadata conversion fails.
var ErrMappingToEventMetadataFailed = errors.New("mapping to event metadata failed")

// MessageID represents a unique message identifier.
type MessageID = string

// CausationID represents the ID of the message that caused this event.
type CausationID = string

// CorrelationID represents the ID correlating all events of one workflow.
type CorrelationID = string

// EventMetadata contains tracking information stored beside the event payload,
// never inside it. TenantID and ActingUserID identify who triggered the change
// without polluting the domain event itself.
type EventMetadata struct {
	MessageID     MessageID
	CausationID   CausationID
	CorrelationID CorrelationID
	TenantID      string
	ActingUserID  string
}

// BuildEventMetadata creates EventMetadata from UUID values.
func BuildEventMetadata(
	messageID uuid.UUID,
	causationID uuid.UUID,
	correlationID uuid.UUID,
	tenantID uuid.UUID,
	actingUserID uuid.UUID,
) EventMetadata {
	return EventMetadata{
		MessageID:     messageID.String(),
		CausationID:   causationID.String(),
		CorrelationID: correlationID.String(),
		TenantID:      tenantID.String(),
		ActingUserID:  actingUserID.String(),
	}
}

// NewCommandMetadata creates EventMetadata for the first command of a workflow:
// message, causation and correlation all start at the same fresh ID.
func NewCommandMetadata(tenantID uuid.UUID, actingUserID uuid.UUID) EventMetadata {
	messageID := uuid.New()

	return BuildEventMetadata(messageID, messageID, messageID, tenantID, actingUserID)
}

// WorkflowCommandMetadata creates EventMetadata for a command dispatched inside
// an existing workflow: the message gets a fresh ID while causation and
// correlation point back at the workflow that triggered it, so every event of
// one provisioning run shares a correlation id. A zero workflow id starts a
// new workflow instead.
func WorkflowCommandMetadata(workflowID uuid.UUID, tenantID uuid.UUID, actingUserID uuid.UUID) EventMetadata {
	if workflowID == uuid.Nil {
		return NewCommandMetadata(tenantID, actingUserID)
	}

	return BuildEventMetadata(uuid.New(), workflowID, workflowID, tenantID, actingUserID)
}

// EventMetadataFrom extracts EventMetadata from a StorableEvent.
func EventMetadataFrom(storableEvent eventstore.StorableEvent) (EventMetadata, error) {
	metadata := new(EventMetadata)
	err := jsoniter.ConfigFastest.Unmarshal(storableEvent.MetadataJSON, metadata)
	if err != nil {
		return EventMetadata{}, errors.Join(ErrMappingToEventMetadataFailed, err)
	}

	return *metadata, nil
}

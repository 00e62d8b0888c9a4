package markprovisioning_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmgatelabs/vmgate/eventstore/memoryengine"
	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/features/command/markprovisioning"
	"github.com/vmgatelabs/vmgate/internal/projection"
	"github.com/vmgatelabs/vmgate/internal/shell"
	"github.com/vmgatelabs/vmgate/internal/timeline"
)

func Test_CommandHandler_MarksAnApprovedRequestProvisioning(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	records := &capturingStatusUpdater{}
	entries := &capturingTimeline{}
	handler := markprovisioning.NewCommandHandler(
		store,
		markprovisioning.WithProjection(records),
		markprovisioning.WithTimeline(entries),
	)
	ids := newTestIDs()
	givenStoredApprovedRequest(t, store, ids)
	command := buildCommand(t, ids)

	// act
	result, err := handler.Handle(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.Equal(t, shell.SuccessResult(1, 3), result)

	storedEvents, version, err := store.Load(context.Background(), ids.requestID.String())
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.Equal(t, core.ProvisioningStartedEventType, storedEvents[2].EventType)

	require.Len(t, records.updates, 1)
	assert.Equal(t, core.StatusProvisioning, records.updates[0].update.Status)

	require.Len(t, entries.recorded, 1)
	assert.Equal(t, "provisioning started", entries.recorded[0].Message)
}

func Test_CommandHandler_TenantMismatchReadsAsNotFound(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	handler := markprovisioning.NewCommandHandler(store)
	ids := newTestIDs()
	givenStoredApprovedRequest(t, store, ids)

	foreignTenant := uuid.New()
	command, err := markprovisioning.BuildCommand(ids.requestID, foreignTenant, ids.approverID, anchorTime())
	require.NoError(t, err)

	// act
	_, handleErr := handler.Handle(context.Background(), command)

	// assert
	require.Error(t, handleErr)
	assert.ErrorIs(t, handleErr, shell.ErrNotFound)

	_, version, loadErr := store.Load(context.Background(), ids.requestID.String())
	require.NoError(t, loadErr)
	assert.Equal(t, 2, version, "a foreign tenant must not advance the stream")
}

func Test_CommandHandler_RedeliveryIsIdempotent(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	handler := markprovisioning.NewCommandHandler(store)
	ids := newTestIDs()
	givenStoredApprovedRequest(t, store, ids)
	command := buildCommand(t, ids)

	_, err := handler.Handle(context.Background(), command)
	require.NoError(t, err)

	// act
	result, err := handler.Handle(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.Equal(t, 3, result.NewVersion)
}

func Test_CommandHandler_CorrelatesTheEventWithTheDispatchingWorkflow(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	handler := markprovisioning.NewCommandHandler(store)
	ids := newTestIDs()
	givenStoredApprovedRequest(t, store, ids)
	workflowID := uuid.New()
	command := buildCommand(t, ids).InWorkflow(workflowID)

	// act
	_, err := handler.Handle(context.Background(), command)

	// assert
	require.NoError(t, err)

	storedEvents, _, err := store.Load(context.Background(), ids.requestID.String())
	require.NoError(t, err)

	envelopes, err := shell.EventEnvelopesFrom(storedEvents)
	require.NoError(t, err)

	started := envelopes[len(envelopes)-1]
	assert.Equal(t, core.ProvisioningStartedEventType, started.DomainEvent.IsEventType())
	assert.Equal(t, workflowID.String(), started.EventMetadata.CorrelationID)
	assert.Equal(t, workflowID.String(), started.EventMetadata.CausationID)
	assert.NotEqual(t, workflowID.String(), started.EventMetadata.MessageID,
		"the event needs its own message id inside the workflow")
}

func Test_CommandHandler_PendingRequestIsAnInvalidState(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	handler := markprovisioning.NewCommandHandler(store)
	ids := newTestIDs()
	givenStoredPendingRequest(t, store, ids)
	command := buildCommand(t, ids)

	// act
	_, err := handler.Handle(context.Background(), command)

	// assert
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

/*** Test doubles ***/

type statusUpdateCall struct {
	tenantID  string
	requestID string
	update    projection.StatusUpdate
}

type capturingStatusUpdater struct {
	updates []statusUpdateCall
}

func (c *capturingStatusUpdater) UpdateStatus(
	_ context.Context,
	tenantID, requestID string,
	update projection.StatusUpdate,
) error {
	c.updates = append(c.updates, statusUpdateCall{tenantID: tenantID, requestID: requestID, update: update})
	return nil
}

type capturingTimeline struct {
	recorded []timeline.Entry
}

func (c *capturingTimeline) Record(_ context.Context, entry timeline.Entry) error {
	c.recorded = append(c.recorded, entry)
	return nil
}

func givenStoredPendingRequest(t *testing.T, store *memoryengine.EventStore, ids testIDs) {
	t.Helper()

	created := core.BuildRequestCreated(
		ids.requestID, ids.tenantID, ids.requesterID, "dev@acme.test",
		ids.projectID, "build-agent-7", "M", "ci workers", anchorTime(),
	)

	storable, err := shell.StorableEventWithEmptyMetadataFrom(created)
	require.NoError(t, err)

	_, err = store.Append(context.Background(), ids.requestID.String(), 0, storable)
	require.NoError(t, err)
}

func givenStoredApprovedRequest(t *testing.T, store *memoryengine.EventStore, ids testIDs) {
	t.Helper()

	givenStoredPendingRequest(t, store, ids)

	approved := core.BuildRequestApproved(ids.requestID, ids.tenantID, ids.approverID, anchorTime().Add(time.Minute))

	storable, err := shell.StorableEventWithEmptyMetadataFrom(approved)
	require.NoError(t, err)

	_, err = store.Append(context.Background(), ids.requestID.String(), 1, storable)
	require.NoError(t, err)
}

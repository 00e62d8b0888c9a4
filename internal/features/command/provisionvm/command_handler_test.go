package provisionvm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmgatelabs/vmgate/eventstore/memoryengine"
	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/features/command/provisionvm"
	"github.com/vmgatelabs/vmgate/internal/hypervisor"
	"github.com/vmgatelabs/vmgate/internal/hypervisor/fake"
	"github.com/vmgatelabs/vmgate/internal/hypervisor/mapping"
	"github.com/vmgatelabs/vmgate/internal/projection"
	"github.com/vmgatelabs/vmgate/internal/shell"
)

func Test_CommandHandler_ProvisionsAndRecordsTheVM(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	backend := fake.NewAdapter()
	records := &capturingRecordUpdater{}
	handler := provisionvm.NewCommandHandler(
		store,
		givenTranslator(t),
		backend,
		provisionvm.WithProjection(records),
	)
	ids := newTestIDs()
	givenStoredProvisioningRequest(t, store, ids)
	command := buildCommand(t, ids)

	// act
	result, err := handler.Handle(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.Equal(t, shell.SuccessResult(1, 4), result)

	storedEvents, version, err := store.Load(context.Background(), ids.requestID.String())
	require.NoError(t, err)
	assert.Equal(t, 4, version)
	assert.Equal(t, core.VMProvisionedEventType, storedEvents[3].EventType)

	vms := backend.VMs()
	require.Len(t, vms, 1)
	assert.Equal(t, "build-agent-7", vms[0].Name)
	assert.Equal(t, 2, vms[0].CPU, "size M maps onto 2 vCPUs")

	require.Len(t, records.vmDetails, 1)
	assert.Equal(t, vms[0].Ref, records.vmDetails[0].details.HypervisorRef)
	assert.NotEmpty(t, records.vmDetails[0].details.IPAddress)
}

func Test_CommandHandler_RetriableBackendErrorLeavesTheStreamUntouched(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	backend := fake.NewAdapter()
	backend.FailWith(fake.OpCreateVM, hypervisor.NewError(hypervisor.CodeConnectionFailed, "api unreachable"))
	records := &capturingRecordUpdater{}
	handler := provisionvm.NewCommandHandler(
		store,
		givenTranslator(t),
		backend,
		provisionvm.WithProjection(records),
	)
	ids := newTestIDs()
	givenStoredProvisioningRequest(t, store, ids)
	command := buildCommand(t, ids)

	// act
	_, err := handler.Handle(context.Background(), command)

	// assert
	require.Error(t, err)
	assert.True(t, hypervisor.IsRetriable(err), "the caller owns the retry policy")

	_, version, loadErr := store.Load(context.Background(), ids.requestID.String())
	require.NoError(t, loadErr)
	assert.Equal(t, 3, version, "a retriable failure must record nothing")
	assert.Empty(t, records.statusUpdates)
	assert.Empty(t, records.vmDetails)
}

func Test_CommandHandler_PermanentBackendErrorRecordsTheFailure(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	backend := fake.NewAdapter()
	backend.FailWith(fake.OpCreateVM, hypervisor.NewError(hypervisor.CodeInvalidVMSpec, "disk size exceeds datastore"))
	records := &capturingRecordUpdater{}
	handler := provisionvm.NewCommandHandler(
		store,
		givenTranslator(t),
		backend,
		provisionvm.WithProjection(records),
	)
	ids := newTestIDs()
	givenStoredProvisioningRequest(t, store, ids)
	command := buildCommand(t, ids)

	// act
	result, err := handler.Handle(context.Background(), command)

	// assert: the failure is recorded and the cause still reported
	require.Error(t, err)
	assert.False(t, hypervisor.IsRetriable(err))
	assert.Equal(t, 1, result.EventsAppended)

	storedEvents, version, loadErr := store.Load(context.Background(), ids.requestID.String())
	require.NoError(t, loadErr)
	assert.Equal(t, 4, version)
	assert.Equal(t, core.ProvisioningFailedEventType, storedEvents[3].EventType)

	require.Len(t, records.statusUpdates, 1)
	update := records.statusUpdates[0].update
	assert.Equal(t, core.StatusFailed, update.Status)
	assert.Contains(t, update.FailureReason, "disk size exceeds datastore")
	assert.Equal(t, 1, update.RetryCount)
}

func Test_CommandHandler_MissingMappingRecordsANonRetriableFailure(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	backend := fake.NewAdapter()
	emptyTranslator := mapping.NewTranslator(&stubMappingSource{})
	handler := provisionvm.NewCommandHandler(store, emptyTranslator, backend)
	ids := newTestIDs()
	givenStoredProvisioningRequest(t, store, ids)
	command := buildCommand(t, ids)

	// act
	result, err := handler.Handle(context.Background(), command)

	// assert
	require.Error(t, err)
	assert.ErrorIs(t, err, mapping.ErrMappingNotFound)
	assert.Equal(t, 1, result.EventsAppended)

	storedEvents, _, loadErr := store.Load(context.Background(), ids.requestID.String())
	require.NoError(t, loadErr)
	assert.Equal(t, core.ProvisioningFailedEventType, storedEvents[3].EventType)

	assert.Zero(t, backend.CallCount(fake.OpCreateVM), "an unresolvable mapping must not reach the backend")
}

func Test_CommandHandler_MappingStoreOutageSurfacesAsAPersistenceFailure(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	backend := fake.NewAdapter()
	brokenTranslator := mapping.NewTranslator(unavailableMappingSource{})
	handler := provisionvm.NewCommandHandler(store, brokenTranslator, backend)
	ids := newTestIDs()
	givenStoredProvisioningRequest(t, store, ids)
	command := buildCommand(t, ids)

	// act
	_, err := handler.Handle(context.Background(), command)

	// assert: an outage is not a verdict on the mapping, so no failure is recorded
	require.Error(t, err)
	assert.ErrorIs(t, err, shell.ErrPersistenceFailed)

	storedEvents, version, loadErr := store.Load(context.Background(), ids.requestID.String())
	require.NoError(t, loadErr)
	assert.Equal(t, 3, version, "a store outage must leave the stream untouched")
	for _, stored := range storedEvents {
		assert.NotEqual(t, core.ProvisioningFailedEventType, stored.EventType)
	}
	assert.Zero(t, backend.CallCount(fake.OpCreateVM))
}

func Test_CommandHandler_ReadyRequestSkipsTheBackend(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	backend := fake.NewAdapter()
	handler := provisionvm.NewCommandHandler(store, givenTranslator(t), backend)
	ids := newTestIDs()
	givenStoredProvisioningRequest(t, store, ids)
	givenStoredEvent(t, store, ids, 3, core.BuildVMProvisioned(
		ids.requestID, ids.tenantID, "pve1/104", "10.0.0.7", "build-agent-7", "", anchorTime().Add(3*time.Minute),
	))
	command := buildCommand(t, ids)

	// act
	result, err := handler.Handle(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.Equal(t, 4, result.NewVersion)
	assert.Zero(t, backend.CallCount(fake.OpCreateVM))
}

func Test_CommandHandler_NonProvisioningStateIsInvalid(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	backend := fake.NewAdapter()
	handler := provisionvm.NewCommandHandler(store, givenTranslator(t), backend)
	ids := newTestIDs()
	givenStoredEvent(t, store, ids, 0, core.BuildRequestCreated(
		ids.requestID, ids.tenantID, ids.requesterID, "dev@acme.test",
		ids.projectID, "build-agent-7", "M", "ci workers", anchorTime(),
	))
	command := buildCommand(t, ids)

	// act
	_, err := handler.Handle(context.Background(), command)

	// assert
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	assert.Zero(t, backend.CallCount(fake.OpCreateVM))
}

func Test_CommandHandler_ReportsMissingRequestsAsNotFound(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore()
	handler := provisionvm.NewCommandHandler(store, givenTranslator(t), fake.NewAdapter())
	command := buildCommand(t, newTestIDs())

	// act
	_, err := handler.Handle(context.Background(), command)

	// assert
	assert.ErrorIs(t, err, shell.ErrNotFound)
}

/*** Test doubles ***/

type stubMappingSource struct {
	mappings map[string]*mapping.TenantMapping
}

func (s *stubMappingSource) GetByTenant(_ context.Context, tenantID string) (*mapping.TenantMapping, error) {
	m, ok := s.mappings[tenantID]
	if !ok {
		return nil, &mapping.MappingError{TenantID: tenantID, Field: "tenant"}
	}

	return m, nil
}

type unavailableMappingSource struct{}

func (unavailableMappingSource) GetByTenant(context.Context, string) (*mapping.TenantMapping, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
}

// givenTranslator serves one complete mapping for every tenant the tests use.
func givenTranslator(t *testing.T) *mapping.Translator {
	t.Helper()

	return mapping.NewTranslator(anyTenantSource{t: t})
}

type anyTenantSource struct {
	t *testing.T
}

func (s anyTenantSource) GetByTenant(_ context.Context, tenantID string) (*mapping.TenantMapping, error) {
	s.t.Helper()

	m := &mapping.TenantMapping{
		TenantID:       tenantID,
		ComputeTarget:  "pve1",
		Datastore:      "local-lvm",
		DefaultNetwork: "default",
	}
	require.NoError(s.t, m.SetNetworkTable(map[string]string{"default": "vmbr0"}))

	return m, nil
}

type statusUpdateCall struct {
	tenantID  string
	requestID string
	update    projection.StatusUpdate
}

type vmDetailsCall struct {
	tenantID  string
	requestID string
	details   projection.VMDetails
}

type capturingRecordUpdater struct {
	statusUpdates []statusUpdateCall
	vmDetails     []vmDetailsCall
}

func (c *capturingRecordUpdater) UpdateStatus(
	_ context.Context,
	tenantID, requestID string,
	update projection.StatusUpdate,
) error {
	c.statusUpdates = append(c.statusUpdates, statusUpdateCall{tenantID: tenantID, requestID: requestID, update: update})
	return nil
}

func (c *capturingRecordUpdater) UpdateVMDetails(
	_ context.Context,
	tenantID, requestID string,
	details projection.VMDetails,
) error {
	c.vmDetails = append(c.vmDetails, vmDetailsCall{tenantID: tenantID, requestID: requestID, details: details})
	return nil
}

func givenStoredEvent(t *testing.T, store *memoryengine.EventStore, ids testIDs, expectedVersion int, event core.DomainEvent) {
	t.Helper()

	storable, err := shell.StorableEventWithEmptyMetadataFrom(event)
	require.NoError(t, err)

	_, err = store.Append(context.Background(), ids.requestID.String(), expectedVersion, storable)
	require.NoError(t, err)
}

func givenStoredProvisioningRequest(t *testing.T, store *memoryengine.EventStore, ids testIDs) {
	t.Helper()

	for i, event := range givenProvisioningRequest(t, ids) {
		givenStoredEvent(t, store, ids, i, event)
	}
}

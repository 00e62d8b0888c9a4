package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/vmgatelabs/vmgate/internal/core"
)

func Test_ProjectRequest_EmptyHistory_YieldsNonExistingRequest(t *testing.T) {
	// act
	request := core.ProjectRequest(nil)

	// assert
	assert.False(t, request.Exists())
	assert.Equal(t, core.StatusNone, request.Status)
}

func Test_ProjectRequest_FullProvisioningLifecycle(t *testing.T) {
	// arrange
	fakeClock := time.Unix(0, 0).UTC()
	requestID := uuid.New()
	tenantID := uuid.New()
	requesterID := uuid.New()
	approverID := uuid.New()
	projectID := uuid.New()

	history := core.DomainEvents{
		core.BuildRequestCreated(requestID, tenantID, requesterID, "dev@example.com", projectID, "build-agent-01", "M", "ci workers", fakeClock),
		core.BuildRequestApproved(requestID, tenantID, approverID, fakeClock.Add(time.Minute)),
		core.BuildProvisioningStarted(requestID, tenantID, approverID, fakeClock.Add(2*time.Minute)),
		core.BuildVMProvisioned(requestID, tenantID, "qemu/105", "10.0.0.15", "build-agent-01.lab", "", fakeClock.Add(3*time.Minute)),
	}

	// act
	request := core.ProjectRequest(history)

	// assert
	assert.True(t, request.Exists())
	assert.Equal(t, core.StatusReady, request.Status)
	assert.Equal(t, requestID.String(), request.RequestID)
	assert.Equal(t, tenantID.String(), request.TenantID)
	assert.Equal(t, requesterID.String(), request.RequesterID)
	assert.Equal(t, approverID.String(), request.ApprovedBy)
	assert.Equal(t, "build-agent-01", request.VMName)
	assert.Equal(t, "M", request.Size)
	assert.Equal(t, "qemu/105", request.HypervisorRef)
	assert.Equal(t, "10.0.0.15", request.IPAddress)
	assert.Equal(t, "build-agent-01.lab", request.Hostname)
	assert.True(t, request.Status.IsTerminal())
}

func Test_ProjectRequest_IsDeterministic(t *testing.T) {
	// arrange
	fakeClock := time.Unix(0, 0).UTC()
	requestID := uuid.New()
	tenantID := uuid.New()
	requesterID := uuid.New()

	history := core.DomainEvents{
		core.BuildRequestCreated(requestID, tenantID, requesterID, "dev@example.com", uuid.New(), "web-01", "S", "", fakeClock),
		core.BuildRequestCancelled(requestID, tenantID, requesterID, "no longer needed", fakeClock.Add(time.Hour)),
	}

	// act
	first := core.ProjectRequest(history)
	second := core.ProjectRequest(history)

	// assert
	assert.Equal(t, first, second)
	assert.Equal(t, core.StatusCancelled, first.Status)
	assert.Equal(t, requesterID.String(), first.CancelledBy)
}

func Test_ProjectRequest_RejectionCapturesActorAndReason(t *testing.T) {
	// arrange
	fakeClock := time.Unix(0, 0).UTC()
	requestID := uuid.New()
	tenantID := uuid.New()
	approverID := uuid.New()

	history := core.DomainEvents{
		core.BuildRequestCreated(requestID, tenantID, uuid.New(), "dev@example.com", uuid.New(), "db-01", "XL", "analytics", fakeClock),
		core.BuildRequestRejected(requestID, tenantID, approverID, "quota review pending", fakeClock.Add(time.Minute)),
	}

	// act
	request := core.ProjectRequest(history)

	// assert
	assert.Equal(t, core.StatusRejected, request.Status)
	assert.Equal(t, approverID.String(), request.RejectedBy)
	assert.Equal(t, "quota review pending", request.RejectionReason)
	assert.True(t, request.Status.IsTerminal())
}

func Test_ProjectRequest_ProvisioningFailureCapturesRetryData(t *testing.T) {
	// arrange
	fakeClock := time.Unix(0, 0).UTC()
	requestID := uuid.New()
	tenantID := uuid.New()

	history := core.DomainEvents{
		core.BuildRequestCreated(requestID, tenantID, uuid.New(), "dev@example.com", uuid.New(), "worker-02", "L", "", fakeClock),
		core.BuildRequestApproved(requestID, tenantID, uuid.New(), fakeClock),
		core.BuildProvisioningStarted(requestID, tenantID, uuid.New(), fakeClock),
		core.BuildProvisioningFailed(requestID, tenantID, "invalid vm spec", false, 3, fakeClock.Add(time.Minute), fakeClock.Add(time.Minute)),
	}

	// act
	request := core.ProjectRequest(history)

	// assert
	assert.Equal(t, core.StatusFailed, request.Status)
	assert.Equal(t, "invalid vm spec", request.FailureReason)
	assert.Equal(t, 3, request.RetryCount)
	assert.True(t, request.Status.IsTerminal())
}

func Test_RequestStatus_IsTerminal(t *testing.T) {
	testCases := []struct {
		name     string
		status   core.RequestStatus
		terminal bool
	}{
		{"none", core.StatusNone, false},
		{"pending", core.StatusPending, false},
		{"approved", core.StatusApproved, false},
		{"provisioning", core.StatusProvisioning, false},
		{"rejected", core.StatusRejected, true},
		{"cancelled", core.StatusCancelled, true},
		{"ready", core.StatusReady, true},
		{"failed", core.StatusFailed, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.terminal, tc.status.IsTerminal())
		})
	}
}

func Test_DomainEvents_FailureFlag(t *testing.T) {
	// arrange
	fakeClock := time.Unix(0, 0).UTC()
	requestID := uuid.New()
	tenantID := uuid.New()

	created := core.BuildRequestCreated(requestID, tenantID, uuid.New(), "dev@example.com", uuid.New(), "web-01", "S", "", fakeClock)
	failed := core.BuildProvisioningFailed(requestID, tenantID, "node down", true, 1, fakeClock, fakeClock)

	// assert
	assert.False(t, created.IsFailureEvent())
	assert.True(t, failed.IsFailureEvent())
	assert.Equal(t, core.RequestCreatedEventType, created.IsEventType())
	assert.Equal(t, core.ProvisioningFailedEventType, failed.IsEventType())
}

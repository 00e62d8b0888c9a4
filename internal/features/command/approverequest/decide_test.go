package approverequest_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/features/command/approverequest"
)

func Test_Decide_ApprovesAPendingRequest(t *testing.T) {
	// arrange
	ids := newTestIDs()
	history := givenPendingRequest(t, ids)
	command := buildCommand(t, ids)

	// act
	result := approverequest.Decide(history, command)

	// assert
	require.True(t, result.HasEventToAppend())
	approved, ok := result.Event.(core.RequestApproved)
	require.True(t, ok)
	assert.Equal(t, ids.requestID.String(), approved.RequestID)
	assert.Equal(t, ids.approverID.String(), approved.ApprovedBy)
}

func Test_Decide_IsIdempotentWhenAlreadyApproved(t *testing.T) {
	// arrange
	ids := newTestIDs()
	history := givenPendingRequest(t, ids)
	history = append(history, core.BuildRequestApproved(
		ids.requestID, ids.tenantID, ids.approverID, anchorTime().Add(time.Minute),
	))

	// a different admin approving again must not rewrite the recorded approver
	secondApprover := uuid.New()
	command, err := approverequest.BuildCommand(ids.requestID, ids.tenantID, secondApprover, anchorTime().Add(2*time.Minute))
	require.NoError(t, err)

	// act
	result := approverequest.Decide(history, command)

	// assert
	assert.True(t, result.IsIdempotent())
	assert.False(t, result.HasEventToAppend())
}

func Test_Decide_RejectsApprovalInNonPendingStates(t *testing.T) {
	ids := newTestIDs()
	later := anchorTime().Add(time.Minute)

	testCases := []struct {
		name          string
		extraHistory  core.DomainEvents
		expectedState core.RequestStatus
	}{
		{
			name: "cancelled request",
			extraHistory: core.DomainEvents{
				core.BuildRequestCancelled(ids.requestID, ids.tenantID, ids.requesterID, "changed plans", later),
			},
			expectedState: core.StatusCancelled,
		},
		{
			name: "rejected request",
			extraHistory: core.DomainEvents{
				core.BuildRequestRejected(ids.requestID, ids.tenantID, ids.approverID, "budget freeze", later),
			},
			expectedState: core.StatusRejected,
		},
		{
			name: "provisioning request",
			extraHistory: core.DomainEvents{
				core.BuildRequestApproved(ids.requestID, ids.tenantID, ids.approverID, later),
				core.BuildProvisioningStarted(ids.requestID, ids.tenantID, ids.approverID, later.Add(time.Minute)),
			},
			expectedState: core.StatusProvisioning,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			history := append(givenPendingRequest(t, ids), tc.extraHistory...)
			command := buildCommand(t, ids)

			// act
			result := approverequest.Decide(history, command)

			// assert
			err := result.HasError()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidState)

			var stateErr *core.InvalidStateError
			require.ErrorAs(t, err, &stateErr)
			assert.Equal(t, tc.expectedState, stateErr.CurrentState)
		})
	}
}

/*** Test helpers ***/

type testIDs struct {
	requestID   uuid.UUID
	tenantID    uuid.UUID
	requesterID uuid.UUID
	approverID  uuid.UUID
	projectID   uuid.UUID
}

func newTestIDs() testIDs {
	return testIDs{
		requestID:   uuid.New(),
		tenantID:    uuid.New(),
		requesterID: uuid.New(),
		approverID:  uuid.New(),
		projectID:   uuid.New(),
	}
}

func anchorTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func givenPendingRequest(t *testing.T, ids testIDs) core.DomainEvents {
	t.Helper()

	return core.DomainEvents{
		core.BuildRequestCreated(
			ids.requestID, ids.tenantID, ids.requesterID, "dev@acme.test",
			ids.projectID, "build-agent-7", "M", "ci workers", anchorTime(),
		),
	}
}

func buildCommand(t *testing.T, ids testIDs) approverequest.Command {
	t.Helper()

	command, err := approverequest.BuildCommand(
		ids.requestID, ids.tenantID, ids.approverID, anchorTime().Add(time.Minute),
	)
	require.NoError(t, err)

	return command
}

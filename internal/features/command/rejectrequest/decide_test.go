package rejectrequest_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/features/command/rejectrequest"
)

func Test_Decide_RejectsAPendingRequest(t *testing.T) {
	// arrange
	ids := newTestIDs()
	history := givenPendingRequest(t, ids)
	command := buildCommand(t, ids, "budget freeze")

	// act
	result := rejectrequest.Decide(history, command)

	// assert
	require.True(t, result.HasEventToAppend())
	rejected, ok := result.Event.(core.RequestRejected)
	require.True(t, ok)
	assert.Equal(t, ids.requestID.String(), rejected.RequestID)
	assert.Equal(t, ids.approverID.String(), rejected.RejectedBy)
	assert.Equal(t, "budget freeze", rejected.Reason)
}

func Test_Decide_IsIdempotentWhenAlreadyRejected(t *testing.T) {
	// arrange
	ids := newTestIDs()
	history := givenPendingRequest(t, ids)
	history = append(history, core.BuildRequestRejected(
		ids.requestID, ids.tenantID, ids.approverID, "budget freeze", anchorTime().Add(time.Minute),
	))
	command := buildCommand(t, ids, "a different reason entirely")

	// act
	result := rejectrequest.Decide(history, command)

	// assert
	assert.True(t, result.IsIdempotent())
	assert.False(t, result.HasEventToAppend())
}

func Test_Decide_RejectsRejectionInNonPendingStates(t *testing.T) {
	ids := newTestIDs()
	later := anchorTime().Add(time.Minute)

	testCases := []struct {
		name          string
		extraHistory  core.DomainEvents
		expectedState core.RequestStatus
	}{
		{
			name: "approved request",
			extraHistory: core.DomainEvents{
				core.BuildRequestApproved(ids.requestID, ids.tenantID, ids.approverID, later),
			},
			expectedState: core.StatusApproved,
		},
		{
			name: "cancelled request",
			extraHistory: core.DomainEvents{
				core.BuildRequestCancelled(ids.requestID, ids.tenantID, ids.requesterID, "changed plans", later),
			},
			expectedState: core.StatusCancelled,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			history := append(givenPendingRequest(t, ids), tc.extraHistory...)
			command := buildCommand(t, ids, "budget freeze")

			// act
			result := rejectrequest.Decide(history, command)

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

func Test_BuildCommand_RequiresAReason(t *testing.T) {
	// act
	_, err := rejectrequest.BuildCommand(uuid.New(), uuid.New(), uuid.New(), "", anchorTime())

	// assert
	assert.ErrorIs(t, err, rejectrequest.ErrInvalidCommand)
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

func buildCommand(t *testing.T, ids testIDs, reason string) rejectrequest.Command {
	t.Helper()

	command, err := rejectrequest.BuildCommand(
		ids.requestID, ids.tenantID, ids.approverID, reason, anchorTime().Add(time.Minute),
	)
	require.NoError(t, err)

	return command
}

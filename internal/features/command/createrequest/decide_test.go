package createrequest_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/features/command/createrequest"
)

func Test_Decide_OpensTheStreamWhenEmpty(t *testing.T) {
	// arrange
	command := buildCommand(t)

	// act
	result := createrequest.Decide(core.DomainEvents{}, command)

	// assert
	require.True(t, result.HasEventToAppend())
	created, ok := result.Event.(core.RequestCreated)
	require.True(t, ok)
	assert.Equal(t, command.RequestID.String(), created.RequestID)
	assert.Equal(t, command.TenantID.String(), created.TenantID)
	assert.Equal(t, command.RequesterID.String(), created.RequesterID)
	assert.Equal(t, "dev@acme.test", created.RequesterEmail)
	assert.Equal(t, "build-agent-7", created.VMName)
	assert.Equal(t, "M", created.Size)
}

func Test_Decide_IsIdempotentWhenTheStreamAlreadyExists(t *testing.T) {
	// arrange
	command := buildCommand(t)
	history := core.DomainEvents{
		core.BuildRequestCreated(
			command.RequestID, command.TenantID, command.RequesterID, command.RequesterEmail,
			command.ProjectID, command.VMName, command.Size, command.Justification, command.OccurredAt,
		),
	}

	// act
	result := createrequest.Decide(history, command)

	// assert
	assert.True(t, result.IsIdempotent())
	assert.False(t, result.HasEventToAppend())
	assert.NoError(t, result.HasError())
}

func Test_BuildCommand_RejectsInvalidInput(t *testing.T) {
	occurredAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name          string
		email         string
		vmName        string
		size          string
		justification string
	}{
		{name: "malformed email", email: "not-an-email", vmName: "build-agent-7", size: "M", justification: "ci"},
		{name: "empty vm name", email: "dev@acme.test", vmName: "", size: "M", justification: "ci"},
		{name: "vm name with spaces", email: "dev@acme.test", vmName: "my vm", size: "M", justification: "ci"},
		{name: "unknown size", email: "dev@acme.test", vmName: "build-agent-7", size: "XXL", justification: "ci"},
		{name: "missing justification", email: "dev@acme.test", vmName: "build-agent-7", size: "M", justification: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := createrequest.BuildCommand(
				uuid.New(), uuid.New(), uuid.New(), tc.email, uuid.New(),
				tc.vmName, tc.size, tc.justification, occurredAt,
			)

			// assert
			require.Error(t, err)
			assert.ErrorIs(t, err, createrequest.ErrInvalidCommand)
		})
	}
}

func Test_BuildCommand_RejectsZeroIdentifiers(t *testing.T) {
	occurredAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// act
	_, err := createrequest.BuildCommand(
		uuid.Nil, uuid.New(), uuid.New(), "dev@acme.test", uuid.New(),
		"build-agent-7", "M", "ci workers", occurredAt,
	)

	// assert
	assert.ErrorIs(t, err, createrequest.ErrInvalidCommand)
}

func buildCommand(t *testing.T) createrequest.Command {
	t.Helper()

	command, err := createrequest.BuildCommand(
		uuid.New(),
		uuid.New(),
		uuid.New(),
		"dev@acme.test",
		uuid.New(),
		"build-agent-7",
		"M",
		"ci workers for the release pipeline",
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	return command
}

package projection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vmgatelabs/vmgate/internal/core"
)

func Test_StatusColumns_WriteOnlyTheFieldsTheTransitionCarries(t *testing.T) {
	approval := statusColumns(StatusUpdate{
		Status:        core.StatusApproved,
		ApprovedBy:    "5f64a1c2-7f3e-4d2a-9c3b-2f8a54a1d001",
		StreamVersion: 2,
	})

	assert.Equal(t, "APPROVED", approval["status"])
	assert.Equal(t, 2, approval["stream_version"])
	assert.Contains(t, approval, "approved_by")
	assert.NotContains(t, approval, "rejected_by")
	assert.NotContains(t, approval, "cancelled_by")
	assert.NotContains(t, approval, "failure_reason")

	rejection := statusColumns(StatusUpdate{
		Status:          core.StatusRejected,
		RejectedBy:      "9d2c7b44-11aa-4e0f-8b7d-6c1e2f3a4b5c",
		RejectionReason: "quota review pending",
		StreamVersion:   2,
	})

	assert.Equal(t, "REJECTED", rejection["status"])
	assert.Equal(t, "quota review pending", rejection["rejection_reason"])
	assert.NotContains(t, rejection, "approved_by")

	failure := statusColumns(StatusUpdate{
		Status:        core.StatusFailed,
		FailureReason: "ResourceExhausted: not enough memory on node",
		RetryCount:    3,
		StreamVersion: 4,
	})

	assert.Equal(t, "FAILED", failure["status"])
	assert.Equal(t, 3, failure["retry_count"])
}

func Test_StatusColumns_PlainTransitionTouchesOnlyStatusAndVersion(t *testing.T) {
	columns := statusColumns(StatusUpdate{
		Status:        core.StatusProvisioning,
		StreamVersion: 3,
	})

	assert.Len(t, columns, 2)
	assert.Equal(t, "PROVISIONING", columns["status"])
	assert.Equal(t, 3, columns["stream_version"])
}

func Test_TranslateUpdateResult_DistinguishesMissingRowsFromDatabaseFailures(t *testing.T) {
	// a matched row is success
	assert.NoError(t, translateUpdateResult("updateStatus", "t-1", "r-1",
		&gorm.DB{RowsAffected: 1}))

	// zero matched rows: tenant isolation or projection lag
	err := translateUpdateResult("updateStatus", "t-1", "r-1", &gorm.DB{RowsAffected: 0})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NotErrorIs(t, err, ErrDatabaseFailure)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "r-1", notFound.RequestID)

	// an execution error is infrastructure, regardless of rows affected
	cause := errors.New("connection refused")
	err = translateUpdateResult("updateStatus", "t-1", "r-1", &gorm.DB{Error: cause})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatabaseFailure)
	assert.NotErrorIs(t, err, ErrRecordNotFound)
	assert.ErrorIs(t, err, cause)
}

func Test_TranslateRemoveResult_TreatsAnAbsentRowAsSuccess(t *testing.T) {
	// deleting nothing reached the desired end state
	assert.NoError(t, translateRemoveResult(&gorm.DB{RowsAffected: 0}))
	assert.NoError(t, translateRemoveResult(&gorm.DB{RowsAffected: 1}))

	// infrastructure failures still surface
	cause := errors.New("connection refused")
	err := translateRemoveResult(&gorm.DB{Error: cause})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatabaseFailure)
	assert.ErrorIs(t, err, cause)
}

package hypervisor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ErrorCode_RetriabilityIsFixedByTheTaxonomy(t *testing.T) {
	testCases := []struct {
		code      ErrorCode
		retriable bool
	}{
		{CodeAuthenticationFailed, false},
		{CodeAuthorizationFailed, false},
		{CodeResourceNotFound, false},
		{CodeResourceExhausted, true},
		{CodeResourceAlreadyExists, false},
		{CodeOperationNotSupported, false},
		{CodeOperationFailed, true},
		{CodeOperationTimeout, true},
		{CodeConnectionFailed, true},
		{CodeInvalidConfiguration, false},
		{CodeInvalidVMSpec, false},
		{CodeUnknownError, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.retriable, tc.code.Retriable())
			assert.Equal(t, tc.retriable, NewError(tc.code, "boom").Retriable)
		})
	}
}

func Test_IsRetriable_SeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create vm: %w", NewError(CodeResourceExhausted, "node pool full"))

	assert.True(t, IsRetriable(wrapped))
	assert.Equal(t, CodeResourceExhausted, CodeOf(wrapped))
}

func Test_IsRetriable_IsFalseForForeignErrors(t *testing.T) {
	err := errors.New("some io problem")

	assert.False(t, IsRetriable(err))
	assert.Equal(t, CodeUnknownError, CodeOf(err))
}

func Test_Error_MatchesOperationNotSupportedSentinel(t *testing.T) {
	var err error = NewError(CodeOperationNotSupported, "snapshots not available")

	assert.ErrorIs(t, err, ErrOperationNotSupported)
	assert.NotErrorIs(t, NewError(CodeOperationFailed, "boom"), ErrOperationNotSupported)
}

func Test_Error_WithDetailAccumulatesContext(t *testing.T) {
	err := NewErrorf(CodeResourceNotFound, "vm %d missing", 105).
		WithDetail("node", "pve1").
		WithDetail("vmid", "105")

	var hvErr *Error
	require.True(t, errors.As(error(err), &hvErr))
	assert.Equal(t, "pve1", hvErr.Details["node"])
	assert.Equal(t, "105", hvErr.Details["vmid"])
	assert.Contains(t, hvErr.Error(), "ResourceNotFound")
}

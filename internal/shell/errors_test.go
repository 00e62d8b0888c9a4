package shell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmgatelabs/vmgate/eventstore"
)

func Test_NotFoundError_MatchesSentinel(t *testing.T) {
	var err error = &NotFoundError{RequestID: "req-1"}

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "req-1")
}

func Test_ForbiddenError_MatchesSentinelAndDescribesAction(t *testing.T) {
	var err error = &ForbiddenError{RequestID: "req-1", UserID: "user-2", Action: "cancel"}

	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "cancel")
	assert.Contains(t, err.Error(), "user-2")
}

func Test_PersistenceError_UnwrapsToTheInfrastructureError(t *testing.T) {
	inner := eventstore.ErrAppendingEventsFailed
	var err error = &PersistenceError{Operation: "append", AggregateID: "req-1", Err: inner}

	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.ErrorIs(t, err, inner)

	var persistenceErr *PersistenceError
	require.True(t, errors.As(err, &persistenceErr))
	assert.Equal(t, "append", persistenceErr.Operation)
}

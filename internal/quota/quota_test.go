package quota

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_AllowAll_NeverRejects(t *testing.T) {
	checker := AllowAll{}

	assert.NoError(t, checker.Check(context.Background(), uuid.New(), "XL"))
}

func Test_QuotaExceededError_MatchesTheSentinelAndNamesTheLimit(t *testing.T) {
	var err error = &QuotaExceededError{TenantID: "t-1", Active: 5, Limit: 5}

	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "5 active requests")
	assert.Contains(t, err.Error(), "limit is 5")

	var quotaErr *QuotaExceededError
	require.ErrorAs(t, fmt.Errorf("create rejected: %w", err), &quotaErr)
	assert.Equal(t, 5, quotaErr.Active)
}

func Test_TerminalStatuses_ExcludeEveryStatusStillInFlight(t *testing.T) {
	statuses := terminalStatuses()

	assert.ElementsMatch(t, []string{"REJECTED", "CANCELLED", "READY", "FAILED"}, statuses)
	assert.NotContains(t, statuses, "PENDING")
	assert.NotContains(t, statuses, "APPROVED")
	assert.NotContains(t, statuses, "PROVISIONING")
}

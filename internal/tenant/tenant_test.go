package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_FromContext_ReturnsTheStoredTenant(t *testing.T) {
	ctx := WithTenant(context.Background(), Tenant{ID: "tenant-1", Name: "acme"})

	got, ok := FromContext(ctx)

	assert.True(t, ok)
	assert.Equal(t, "tenant-1", got.ID)
	assert.Equal(t, "acme", got.Name)
}

func Test_FromContext_ReportsMissingTenant(t *testing.T) {
	_, ok := FromContext(context.Background())

	assert.False(t, ok)
}

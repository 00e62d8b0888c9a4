package fake_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmgatelabs/vmgate/internal/hypervisor"
	"github.com/vmgatelabs/vmgate/internal/hypervisor/fake"
)

func Test_CreateVM_ProvisionsAndTracksTheVM(t *testing.T) {
	// arrange
	ctx := context.Background()
	adapter := fake.NewAdapter()

	// act
	result, err := adapter.CreateVM(ctx, hypervisor.VMSpec{
		Name:     "ci-runner-01",
		CPU:      4,
		MemoryMB: 8192,
		DiskGB:   80,
	})

	// assert
	require.NoError(t, err)
	assert.NotEmpty(t, result.HypervisorRef)
	assert.NotEmpty(t, result.IPAddress)
	assert.Equal(t, "ci-runner-01", result.Hostname)

	vm, err := adapter.GetVM(ctx, result.HypervisorRef)
	require.NoError(t, err)
	assert.Equal(t, hypervisor.VMStateRunning, vm.State)
	assert.Equal(t, 4, vm.CPU)
}

func Test_CreateVM_RejectsEmptyName(t *testing.T) {
	adapter := fake.NewAdapter()

	_, err := adapter.CreateVM(context.Background(), hypervisor.VMSpec{CPU: 1})

	assert.Equal(t, hypervisor.CodeInvalidVMSpec, hypervisor.CodeOf(err))
	assert.False(t, hypervisor.IsRetriable(err))
}

func Test_GetVM_UnknownRef_ReportsResourceNotFound(t *testing.T) {
	adapter := fake.NewAdapter()

	_, err := adapter.GetVM(context.Background(), "fake-node-1/999")

	assert.Equal(t, hypervisor.CodeResourceNotFound, hypervisor.CodeOf(err))
}

func Test_StopAndStartVM_FlipTheState(t *testing.T) {
	// arrange
	ctx := context.Background()
	adapter := fake.NewAdapter()
	result, err := adapter.CreateVM(ctx, hypervisor.VMSpec{Name: "web-01", CPU: 2, MemoryMB: 4096})
	require.NoError(t, err)

	// act + assert
	require.NoError(t, adapter.StopVM(ctx, result.HypervisorRef))
	vm, err := adapter.GetVM(ctx, result.HypervisorRef)
	require.NoError(t, err)
	assert.Equal(t, hypervisor.VMStateStopped, vm.State)

	require.NoError(t, adapter.StartVM(ctx, result.HypervisorRef))
	vm, err = adapter.GetVM(ctx, result.HypervisorRef)
	require.NoError(t, err)
	assert.Equal(t, hypervisor.VMStateRunning, vm.State)
}

func Test_DeleteVM_RemovesTheVM(t *testing.T) {
	// arrange
	ctx := context.Background()
	adapter := fake.NewAdapter()
	result, err := adapter.CreateVM(ctx, hypervisor.VMSpec{Name: "tmp-01", CPU: 1, MemoryMB: 1024})
	require.NoError(t, err)

	// act
	err = adapter.DeleteVM(ctx, result.HypervisorRef)

	// assert
	require.NoError(t, err)
	assert.Empty(t, adapter.VMs())

	err = adapter.DeleteVM(ctx, result.HypervisorRef)
	assert.Equal(t, hypervisor.CodeResourceNotFound, hypervisor.CodeOf(err))
}

func Test_FailOnceWith_FailsExactlyOnceThenRecovers(t *testing.T) {
	// arrange
	ctx := context.Background()
	adapter := fake.NewAdapter()
	adapter.FailOnceWith(fake.OpCreateVM, hypervisor.NewError(hypervisor.CodeResourceExhausted, "node pool full"))

	// act
	_, firstErr := adapter.CreateVM(ctx, hypervisor.VMSpec{Name: "retry-me", CPU: 1, MemoryMB: 512})
	_, secondErr := adapter.CreateVM(ctx, hypervisor.VMSpec{Name: "retry-me", CPU: 1, MemoryMB: 512})

	// assert
	assert.Equal(t, hypervisor.CodeResourceExhausted, hypervisor.CodeOf(firstErr))
	assert.True(t, hypervisor.IsRetriable(firstErr))
	assert.NoError(t, secondErr)
	assert.Equal(t, 2, adapter.CallCount(fake.OpCreateVM))
}

func Test_FailWith_FailsPersistentlyUntilCleared(t *testing.T) {
	// arrange
	ctx := context.Background()
	adapter := fake.NewAdapter()
	adapter.FailWith(fake.OpTestConnection, hypervisor.NewError(hypervisor.CodeConnectionFailed, "refused"))

	// act + assert
	assert.Error(t, adapter.TestConnection(ctx))
	assert.Error(t, adapter.TestConnection(ctx))

	adapter.ClearFailures()
	assert.NoError(t, adapter.TestConnection(ctx))
}

func Test_ListResources_ReturnsTheTopologyTree(t *testing.T) {
	adapter := fake.NewAdapter()

	resources, err := adapter.ListResources(context.Background())

	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, hypervisor.ResourceKindCompute, resources[0].Kind)
	require.Len(t, resources[0].Children, 2)
	assert.Equal(t, hypervisor.ResourceKindStorage, resources[0].Children[0].Kind)
	assert.Equal(t, hypervisor.ResourceKindNetwork, resources[0].Children[1].Kind)
}

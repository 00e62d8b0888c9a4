// Package fake provides an in-memory Hypervisor for tests and the `fake`
// backend configuration used in local runs.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vmgatelabs/vmgate/internal/hypervisor"
)

// Operation names used for call recording and failure scripting.
const (
	OpTestConnection = "TestConnection"
	OpListResources  = "ListResources"
	OpCreateVM       = "CreateVM"
	OpGetVM          = "GetVM"
	OpStartVM        = "StartVM"
	OpStopVM         = "StopVM"
	OpDeleteVM       = "DeleteVM"
)

// Adapter is an in-memory provisioning backend. It records every call and can
// be scripted to fail specific operations, persistently or once.
type Adapter struct {
	mu                 sync.Mutex
	capabilities       hypervisor.Capabilities
	resources          []hypervisor.Resource
	vms                map[string]*hypervisor.VMInfo
	calls              []string
	persistentFailures map[string]*hypervisor.Error
	oneShotFailures    map[string][]*hypervisor.Error
	nextVMID           int
}

// NewAdapter creates a fake backend with one compute node carrying a datastore
// and a bridge, which is enough topology for every test scenario.
func NewAdapter() *Adapter {
	return &Adapter{
		capabilities: hypervisor.Capabilities{
			SupportsSnapshots: true,
			HotAddCPU:         true,
			HotAddMemory:      true,
			MaxCPU:            16,
			MaxMemoryMB:       65536,
		},
		resources: []hypervisor.Resource{
			{
				Kind:          hypervisor.ResourceKindCompute,
				ID:            "fake-node-1",
				Name:          "fake-node-1",
				CapacityTotal: 64 << 30,
				CapacityFree:  48 << 30,
				Children: []hypervisor.Resource{
					{
						Kind:          hypervisor.ResourceKindStorage,
						ID:            "fake-node-1/local",
						Name:          "local",
						Parent:        "fake-node-1",
						CapacityTotal: 500 << 30,
						CapacityFree:  400 << 30,
					},
					{
						Kind:   hypervisor.ResourceKindNetwork,
						ID:     "fake-node-1/vmbr0",
						Name:   "vmbr0",
						Parent: "fake-node-1",
					},
				},
			},
		},
		vms:                make(map[string]*hypervisor.VMInfo),
		persistentFailures: make(map[string]*hypervisor.Error),
		oneShotFailures:    make(map[string][]*hypervisor.Error),
		nextVMID:           100,
	}
}

// FailWith scripts op to fail with hvErr on every call until ClearFailures.
func (a *Adapter) FailWith(op string, hvErr *hypervisor.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.persistentFailures[op] = hvErr
}

// FailOnceWith scripts op to fail with hvErr exactly once; queued failures
// are consumed in order before any persistent failure applies.
func (a *Adapter) FailOnceWith(op string, hvErr *hypervisor.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.oneShotFailures[op] = append(a.oneShotFailures[op], hvErr)
}

// ClearFailures removes all scripted failures.
func (a *Adapter) ClearFailures() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.persistentFailures = make(map[string]*hypervisor.Error)
	a.oneShotFailures = make(map[string][]*hypervisor.Error)
}

// Calls returns the recorded operation names in call order.
func (a *Adapter) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	calls := make([]string, len(a.calls))
	copy(calls, a.calls)

	return calls
}

// CallCount returns how often op was invoked.
func (a *Adapter) CallCount(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for _, call := range a.calls {
		if call == op {
			count++
		}
	}

	return count
}

// VMs returns the current VM inventory ordered by ref.
func (a *Adapter) VMs() []hypervisor.VMInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	vms := make([]hypervisor.VMInfo, 0, len(a.vms))
	for _, vm := range a.vms {
		vms = append(vms, *vm)
	}

	sort.Slice(vms, func(i, j int) bool { return vms[i].Ref < vms[j].Ref })

	return vms
}

// SetCapabilities overrides the advertised capabilities.
func (a *Adapter) SetCapabilities(c hypervisor.Capabilities) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.capabilities = c
}

// Capabilities implements hypervisor.Hypervisor.
func (a *Adapter) Capabilities() hypervisor.Capabilities {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.capabilities
}

// TestConnection implements hypervisor.Hypervisor.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.record(ctx, OpTestConnection); err != nil {
		return err
	}

	return nil
}

// ListResources implements hypervisor.Hypervisor.
func (a *Adapter) ListResources(ctx context.Context) ([]hypervisor.Resource, error) {
	if err := a.record(ctx, OpListResources); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	resources := make([]hypervisor.Resource, len(a.resources))
	copy(resources, a.resources)

	return resources, nil
}

// CreateVM implements hypervisor.Hypervisor.
func (a *Adapter) CreateVM(ctx context.Context, spec hypervisor.VMSpec) (*hypervisor.ProvisioningResult, error) {
	if err := a.record(ctx, OpCreateVM); err != nil {
		return nil, err
	}

	if spec.Name == "" {
		return nil, hypervisor.NewError(hypervisor.CodeInvalidVMSpec, "vm name must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextVMID++
	node := spec.TargetNode
	if node == "" {
		node = "fake-node-1"
	}
	ref := fmt.Sprintf("%s/%d", node, a.nextVMID)

	a.vms[ref] = &hypervisor.VMInfo{
		Ref:      ref,
		Name:     spec.Name,
		Node:     node,
		State:    hypervisor.VMStateRunning,
		CPU:      spec.CPU,
		MemoryMB: spec.MemoryMB,
	}

	return &hypervisor.ProvisioningResult{
		HypervisorRef: ref,
		IPAddress:     fmt.Sprintf("10.42.0.%d", a.nextVMID%250),
		Hostname:      spec.Name,
	}, nil
}

// GetVM implements hypervisor.Hypervisor.
func (a *Adapter) GetVM(ctx context.Context, ref string) (*hypervisor.VMInfo, error) {
	if err := a.record(ctx, OpGetVM); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	vm, ok := a.vms[ref]
	if !ok {
		return nil, hypervisor.NewErrorf(hypervisor.CodeResourceNotFound, "vm %s does not exist", ref)
	}

	vmCopy := *vm

	return &vmCopy, nil
}

// StartVM implements hypervisor.Hypervisor.
func (a *Adapter) StartVM(ctx context.Context, ref string) error {
	if err := a.record(ctx, OpStartVM); err != nil {
		return err
	}

	return a.setState(ref, hypervisor.VMStateRunning)
}

// StopVM implements hypervisor.Hypervisor.
func (a *Adapter) StopVM(ctx context.Context, ref string) error {
	if err := a.record(ctx, OpStopVM); err != nil {
		return err
	}

	return a.setState(ref, hypervisor.VMStateStopped)
}

// DeleteVM implements hypervisor.Hypervisor.
func (a *Adapter) DeleteVM(ctx context.Context, ref string) error {
	if err := a.record(ctx, OpDeleteVM); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.vms[ref]; !ok {
		return hypervisor.NewErrorf(hypervisor.CodeResourceNotFound, "vm %s does not exist", ref)
	}

	delete(a.vms, ref)

	return nil
}

func (a *Adapter) setState(ref string, state hypervisor.VMState) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	vm, ok := a.vms[ref]
	if !ok {
		return hypervisor.NewErrorf(hypervisor.CodeResourceNotFound, "vm %s does not exist", ref)
	}

	vm.State = state

	return nil
}

// record notes the call and returns any scripted failure for op.
func (a *Adapter) record(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, op)

	if queued := a.oneShotFailures[op]; len(queued) > 0 {
		hvErr := queued[0]
		a.oneShotFailures[op] = queued[1:]

		return hvErr
	}

	if hvErr, ok := a.persistentFailures[op]; ok {
		return hvErr
	}

	return nil
}

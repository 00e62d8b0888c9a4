// Package proxmox adapts the Proxmox VE HTTP API to the hypervisor port.
//
// Authentication uses API tokens (PVEAPIToken header). Long-running
// operations return a task UPID which the adapter polls until completion, so
// callers see synchronous results. Every backend fault is mapped onto the
// hypervisor error taxonomy before it leaves this package.
package proxmox

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vmgatelabs/vmgate/internal/hypervisor"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultTaskPollInterval = time.Second
	defaultTaskTimeout      = 2 * time.Minute
	defaultMaxCPU           = 64
	defaultMaxMemoryMB      = 262144
)

// Config carries the connection settings for one Proxmox VE cluster.
type Config struct {
	// BaseURL is the API root, e.g. https://pve.example.com:8006.
	BaseURL string

	// TokenID is the full token identifier, e.g. vmgate@pve!provisioner.
	TokenID string

	// Secret is the token secret value.
	Secret string

	// Timeout bounds a single HTTP call. Zero means 30s.
	Timeout time.Duration

	// TaskPollInterval is the delay between task status polls. Zero means 1s.
	TaskPollInterval time.Duration

	// TaskTimeout bounds waiting for one backend task. Zero means 2m.
	TaskTimeout time.Duration

	// InsecureSkipVerify disables TLS verification for lab clusters with
	// self-signed certificates.
	InsecureSkipVerify bool

	// MaxCPU and MaxMemoryMB cap what this cluster should hand out; they are
	// advertised through Capabilities. Zero means the defaults.
	MaxCPU      int
	MaxMemoryMB int
}

// Adapter implements hypervisor.Hypervisor against Proxmox VE.
type Adapter struct {
	cfg  Config
	http *http.Client
}

// NewAdapter validates the configuration and builds the adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, hypervisor.NewError(hypervisor.CodeInvalidConfiguration, "proxmox base url must not be empty")
	}
	if cfg.TokenID == "" || cfg.Secret == "" {
		return nil, hypervisor.NewError(hypervisor.CodeInvalidConfiguration, "proxmox api token must be configured")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TaskPollInterval == 0 {
		cfg.TaskPollInterval = defaultTaskPollInterval
	}
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if cfg.MaxCPU == 0 {
		cfg.MaxCPU = defaultMaxCPU
	}
	if cfg.MaxMemoryMB == 0 {
		cfg.MaxMemoryMB = defaultMaxMemoryMB
	}

	return &Adapter{cfg: cfg, http: newHTTPClient(cfg)}, nil
}

// Capabilities implements hypervisor.Hypervisor. QEMU on Proxmox VE supports
// snapshots, live migration and hotplug across the board; the resource caps
// come from configuration.
func (a *Adapter) Capabilities() hypervisor.Capabilities {
	return hypervisor.Capabilities{
		SupportsSnapshots:     true,
		SupportsLiveMigration: true,
		HotAddCPU:             true,
		HotAddMemory:          true,
		HotAddDisk:            true,
		MaxCPU:                a.cfg.MaxCPU,
		MaxMemoryMB:           a.cfg.MaxMemoryMB,
	}
}

// TestConnection implements hypervisor.Hypervisor.
func (a *Adapter) TestConnection(ctx context.Context) error {
	var resp apiResponse[versionData]

	return a.doRequest(ctx, http.MethodGet, "/api2/json/version", nil, &resp)
}

// ListResources implements hypervisor.Hypervisor. Nodes become compute
// resources with their storages and bridges as children.
func (a *Adapter) ListResources(ctx context.Context) ([]hypervisor.Resource, error) {
	var resp apiResponse[[]clusterResource]
	if err := a.doRequest(ctx, http.MethodGet, "/api2/json/cluster/resources", nil, &resp); err != nil {
		return nil, err
	}

	nodes := make([]hypervisor.Resource, 0)
	nodeIndex := make(map[string]int)

	for _, item := range resp.Data {
		if item.Type != "node" {
			continue
		}

		nodeIndex[item.Node] = len(nodes)
		nodes = append(nodes, hypervisor.Resource{
			Kind:          hypervisor.ResourceKindCompute,
			ID:            item.ID,
			Name:          item.Node,
			CapacityTotal: item.MaxMem,
			CapacityFree:  item.MaxMem - item.Mem,
		})
	}

	for _, item := range resp.Data {
		if item.Type != "storage" {
			continue
		}

		idx, ok := nodeIndex[item.Node]
		if !ok {
			continue
		}

		nodes[idx].Children = append(nodes[idx].Children, hypervisor.Resource{
			Kind:          hypervisor.ResourceKindStorage,
			ID:            item.ID,
			Name:          item.Storage,
			Parent:        item.Node,
			CapacityTotal: item.MaxDisk,
			CapacityFree:  item.MaxDisk - item.Disk,
		})
	}

	for nodeName, idx := range nodeIndex {
		bridges, err := a.listBridges(ctx, nodeName)
		if err != nil {
			return nil, err
		}

		nodes[idx].Children = append(nodes[idx].Children, bridges...)
	}

	return nodes, nil
}

func (a *Adapter) listBridges(ctx context.Context, node string) ([]hypervisor.Resource, error) {
	var resp apiResponse[[]networkEntry]
	path := fmt.Sprintf("/api2/json/nodes/%s/network?type=any_bridge", node)
	if err := a.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	bridges := make([]hypervisor.Resource, 0, len(resp.Data))
	for _, entry := range resp.Data {
		bridges = append(bridges, hypervisor.Resource{
			Kind:   hypervisor.ResourceKindNetwork,
			ID:     node + "/" + entry.Iface,
			Name:   entry.Iface,
			Parent: node,
		})
	}

	return bridges, nil
}

// CreateVM implements hypervisor.Hypervisor. It allocates a VMID, submits the
// create task and polls until the backend finishes. The guest agent is not
// queried, so the result carries a warning instead of an IP address.
func (a *Adapter) CreateVM(ctx context.Context, spec hypervisor.VMSpec) (*hypervisor.ProvisioningResult, error) {
	if spec.Name == "" {
		return nil, hypervisor.NewError(hypervisor.CodeInvalidVMSpec, "vm name must not be empty")
	}
	if spec.TargetNode == "" {
		return nil, hypervisor.NewError(hypervisor.CodeInvalidVMSpec, "target node must be set")
	}
	if spec.Datastore == "" {
		return nil, hypervisor.NewError(hypervisor.CodeInvalidVMSpec, "datastore must be set")
	}

	vmid, err := a.nextVMID(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"vmid":    vmid,
		"name":    spec.Name,
		"cores":   spec.CPU,
		"sockets": 1,
		"memory":  spec.MemoryMB,
		"scsi0":   fmt.Sprintf("%s:%d", spec.Datastore, spec.DiskGB),
		"start":   1,
	}
	if spec.Description != "" {
		body["description"] = spec.Description
	}
	for i, bridge := range spec.Networks {
		body[fmt.Sprintf("net%d", i)] = fmt.Sprintf("virtio,bridge=%s", bridge)
	}

	var resp apiResponse[string]
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu", spec.TargetNode)
	if err = a.doRequest(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	if err = a.waitForTask(ctx, spec.TargetNode, resp.Data); err != nil {
		return nil, err
	}

	return &hypervisor.ProvisioningResult{
		HypervisorRef: fmt.Sprintf("%s/%d", spec.TargetNode, vmid),
		Hostname:      spec.Name,
		Warning:       "ip address not reported: guest agent not queried during provisioning",
	}, nil
}

// GetVM implements hypervisor.Hypervisor.
func (a *Adapter) GetVM(ctx context.Context, ref string) (*hypervisor.VMInfo, error) {
	node, vmid, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	var resp apiResponse[vmStatus]
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu/%d/status/current", node, vmid)
	if err = a.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return &hypervisor.VMInfo{
		Ref:           ref,
		Name:          resp.Data.Name,
		Node:          node,
		State:         vmStateFrom(resp.Data.Status),
		CPU:           int(resp.Data.CPUs),
		MemoryMB:      int(resp.Data.MaxMem >> 20),
		UptimeSeconds: resp.Data.Uptime,
	}, nil
}

// StartVM implements hypervisor.Hypervisor.
func (a *Adapter) StartVM(ctx context.Context, ref string) error {
	return a.vmPowerOperation(ctx, ref, "start")
}

// StopVM implements hypervisor.Hypervisor.
func (a *Adapter) StopVM(ctx context.Context, ref string) error {
	return a.vmPowerOperation(ctx, ref, "stop")
}

// DeleteVM implements hypervisor.Hypervisor.
func (a *Adapter) DeleteVM(ctx context.Context, ref string) error {
	node, vmid, err := parseRef(ref)
	if err != nil {
		return err
	}

	var resp apiResponse[string]
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu/%d", node, vmid)
	if err = a.doRequest(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return err
	}

	return a.waitForTask(ctx, node, resp.Data)
}

func (a *Adapter) vmPowerOperation(ctx context.Context, ref string, operation string) error {
	node, vmid, err := parseRef(ref)
	if err != nil {
		return err
	}

	var resp apiResponse[string]
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu/%d/status/%s", node, vmid, operation)
	if err = a.doRequest(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return err
	}

	return a.waitForTask(ctx, node, resp.Data)
}

// nextVMID asks the cluster for a free VMID. The API returns it as a string.
func (a *Adapter) nextVMID(ctx context.Context) (int, error) {
	var resp apiResponse[string]
	if err := a.doRequest(ctx, http.MethodGet, "/api2/json/cluster/nextid", nil, &resp); err != nil {
		return 0, err
	}

	vmid, err := strconv.Atoi(resp.Data)
	if err != nil {
		return 0, hypervisor.NewErrorf(hypervisor.CodeOperationFailed, "backend returned unusable vmid %q", resp.Data)
	}

	return vmid, nil
}

// waitForTask polls a task UPID until it stops, then maps a non-OK exit
// status onto the taxonomy. Caller cancellation is returned as-is; it is not
// a backend fault.
func (a *Adapter) waitForTask(ctx context.Context, node string, upid string) error {
	deadline := time.NewTimer(a.cfg.TaskTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(a.cfg.TaskPollInterval)
	defer ticker.Stop()

	for {
		status, err := a.taskStatus(ctx, node, upid)
		if err != nil {
			return err
		}

		if status.Status == "stopped" {
			if status.ExitStatus == "OK" {
				return nil
			}

			return classifyTaskFault(status.ExitStatus).WithDetail("upid", upid).WithDetail("node", node)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return hypervisor.NewErrorf(hypervisor.CodeOperationTimeout,
				"task %s did not finish within %s", upid, a.cfg.TaskTimeout).WithDetail("node", node)
		case <-ticker.C:
		}
	}
}

func (a *Adapter) taskStatus(ctx context.Context, node string, upid string) (taskStatus, error) {
	var resp apiResponse[taskStatus]
	path := fmt.Sprintf("/api2/json/nodes/%s/tasks/%s/status", node, upid)
	if err := a.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return taskStatus{}, err
	}

	return resp.Data, nil
}

// classifyTaskFault maps a task exit status message onto the taxonomy.
func classifyTaskFault(message string) *hypervisor.Error {
	lowered := strings.ToLower(message)

	switch {
	case isCapacityFault(message):
		return hypervisor.NewError(hypervisor.CodeResourceExhausted, message)
	case strings.Contains(lowered, "already exists"):
		return hypervisor.NewError(hypervisor.CodeResourceAlreadyExists, message)
	case strings.Contains(lowered, "timeout"):
		return hypervisor.NewError(hypervisor.CodeOperationTimeout, message)
	default:
		return hypervisor.NewError(hypervisor.CodeOperationFailed, message)
	}
}

// parseRef splits the adapter's "node/vmid" ref format. A ref this adapter
// never minted cannot name an existing VM.
func parseRef(ref string) (string, int, error) {
	node, vmidPart, found := strings.Cut(ref, "/")
	if !found || node == "" {
		return "", 0, hypervisor.NewErrorf(hypervisor.CodeResourceNotFound, "malformed vm ref %q", ref)
	}

	vmid, err := strconv.Atoi(vmidPart)
	if err != nil {
		return "", 0, hypervisor.NewErrorf(hypervisor.CodeResourceNotFound, "malformed vm ref %q", ref)
	}

	return node, vmid, nil
}

func vmStateFrom(status string) hypervisor.VMState {
	switch status {
	case "running":
		return hypervisor.VMStateRunning
	case "stopped":
		return hypervisor.VMStateStopped
	default:
		return hypervisor.VMStateUnknown
	}
}

package hypervisor

import "context"

// Hypervisor is the provisioning backend port. Callers consult Capabilities
// before invoking optional operations; an unsupported operation returns an
// *Error with CodeOperationNotSupported, never a generic failure.
type Hypervisor interface {
	Capabilities() Capabilities
	TestConnection(ctx context.Context) error
	ListResources(ctx context.Context) ([]Resource, error)
	CreateVM(ctx context.Context, spec VMSpec) (*ProvisioningResult, error)
	GetVM(ctx context.Context, ref string) (*VMInfo, error)
	StartVM(ctx context.Context, ref string) error
	StopVM(ctx context.Context, ref string) error
	DeleteVM(ctx context.Context, ref string) error
}

// Capabilities describes what a backend can do, so callers can avoid
// operations the backend would reject.
type Capabilities struct {
	SupportsSnapshots     bool
	SupportsLiveMigration bool
	HotAddCPU             bool
	HotAddMemory          bool
	HotAddDisk            bool
	MaxCPU                int
	MaxMemoryMB           int
}

// ResourceKind classifies entries in the backend resource tree.
type ResourceKind string

const (
	ResourceKindCompute ResourceKind = "compute"
	ResourceKindStorage ResourceKind = "storage"
	ResourceKindNetwork ResourceKind = "network"
)

// Resource is one node of the backend's infrastructure hierarchy, translated
// into a common tree. Capacity values are in bytes where the backend reports
// them; zero means unreported.
type Resource struct {
	Kind          ResourceKind
	ID            string
	Name          string
	Parent        string
	CapacityTotal int64
	CapacityFree  int64
	Children      []Resource
}

// VMSpec is the backend-native description of a VM to create. It is produced
// by the mapping translator; size categories and network names have already
// been resolved at this point.
type VMSpec struct {
	Name        string
	CPU         int
	MemoryMB    int
	DiskGB      int
	TargetNode  string
	Datastore   string
	Networks    []string
	Description string
}

// VMState represents the lifecycle state of a VM from the backend's perspective.
type VMState string

const (
	VMStateRunning VMState = "running"
	VMStateStopped VMState = "stopped"
	VMStateUnknown VMState = "unknown"
)

// VMInfo is the runtime record for an existing VM.
type VMInfo struct {
	Ref           string
	Name          string
	Node          string
	State         VMState
	CPU           int
	MemoryMB      int
	UptimeSeconds int64
}

// ProvisioningResult reports a successful CreateVM. IPAddress and Hostname are
// optional because not every backend reports them synchronously; Warning
// carries a non-fatal degradation the caller should surface.
type ProvisioningResult struct {
	HypervisorRef string
	IPAddress     string
	Hostname      string
	Warning       string
}

package mapping

import (
	"context"

	"github.com/vmgatelabs/vmgate/internal/hypervisor"
)

// MappingSource provides stored tenant mappings. *Store implements it; tests
// substitute an in-memory source.
type MappingSource interface {
	GetByTenant(ctx context.Context, tenantID string) (*TenantMapping, error)
}

// TranslationRequest is the abstract VM description taken from aggregate
// state. Networks holds logical names; empty means the tenant's default
// network.
type TranslationRequest struct {
	VMName      string
	Size        string
	Networks    []string
	Description string
}

// Translator turns abstract requests into backend-native VM specs.
type Translator struct {
	source MappingSource
}

// NewTranslator creates a translator reading from the given source.
func NewTranslator(source MappingSource) *Translator {
	return &Translator{source: source}
}

// Translate resolves the tenant mapping, the size category and every network
// name. Any gap yields a MappingError without touching the backend.
func (t *Translator) Translate(ctx context.Context, tenantID string, req TranslationRequest) (hypervisor.VMSpec, error) {
	m, err := t.source.GetByTenant(ctx, tenantID)
	if err != nil {
		return hypervisor.VMSpec{}, err
	}

	if m.ComputeTarget == "" {
		return hypervisor.VMSpec{}, &MappingError{TenantID: tenantID, Field: "computeTarget"}
	}
	if m.Datastore == "" {
		return hypervisor.VMSpec{}, &MappingError{TenantID: tenantID, Field: "datastore"}
	}

	sizeSpec, ok := SizeSpecFor(req.Size)
	if !ok {
		return hypervisor.VMSpec{}, &MappingError{TenantID: tenantID, Field: "size", Name: req.Size}
	}

	table, err := m.NetworkTable()
	if err != nil {
		return hypervisor.VMSpec{}, err
	}

	names := req.Networks
	if len(names) == 0 {
		if m.DefaultNetwork == "" {
			return hypervisor.VMSpec{}, &MappingError{TenantID: tenantID, Field: "defaultNetwork"}
		}
		names = []string{m.DefaultNetwork}
	}

	bridges := make([]string, 0, len(names))
	for _, name := range names {
		bridge, found := table[name]
		if !found {
			return hypervisor.VMSpec{}, &MappingError{TenantID: tenantID, Field: "network", Name: name}
		}
		bridges = append(bridges, bridge)
	}

	return hypervisor.VMSpec{
		Name:        req.VMName,
		CPU:         sizeSpec.CPU,
		MemoryMB:    sizeSpec.MemoryMB,
		DiskGB:      sizeSpec.DiskGB,
		TargetNode:  m.ComputeTarget,
		Datastore:   m.Datastore,
		Networks:    bridges,
		Description: req.Description,
	}, nil
}

package proxmox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmgatelabs/vmgate/internal/hypervisor"
)

func Test_NewAdapter_ValidatesTheConfig(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
	}{
		{name: "missing base url", cfg: Config{TokenID: "vmgate@pve!prov", Secret: "s3cret"}},
		{name: "missing token id", cfg: Config{BaseURL: "https://pve:8006", Secret: "s3cret"}},
		{name: "missing secret", cfg: Config{BaseURL: "https://pve:8006", TokenID: "vmgate@pve!prov"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAdapter(tc.cfg)

			assert.Equal(t, hypervisor.CodeInvalidConfiguration, hypervisor.CodeOf(err))
		})
	}
}

func Test_TestConnection_SendsTokenAuthAndSucceeds(t *testing.T) {
	// arrange
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeData(w, versionData{Version: "8.1"})
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	// act
	err := adapter.TestConnection(context.Background())

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "PVEAPIToken=vmgate@pve!prov=s3cret", gotAuth)
}

func Test_StatusCodes_MapOntoTheTaxonomy(t *testing.T) {
	testCases := []struct {
		name         string
		status       int
		expectedCode hypervisor.ErrorCode
	}{
		{name: "401 is an authentication failure", status: http.StatusUnauthorized, expectedCode: hypervisor.CodeAuthenticationFailed},
		{name: "403 is an authorization failure", status: http.StatusForbidden, expectedCode: hypervisor.CodeAuthorizationFailed},
		{name: "404 is resource not found", status: http.StatusNotFound, expectedCode: hypervisor.CodeResourceNotFound},
		{name: "500 is a retriable operation failure", status: http.StatusInternalServerError, expectedCode: hypervisor.CodeOperationFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "fault", tc.status)
			}))
			defer server.Close()

			adapter := newTestAdapter(t, server.URL)

			err := adapter.TestConnection(context.Background())

			assert.Equal(t, tc.expectedCode, hypervisor.CodeOf(err))
		})
	}
}

func Test_UnreachableBackend_MapsToConnectionFailed(t *testing.T) {
	// arrange: a server that is already gone
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	adapter := newTestAdapter(t, server.URL)

	// act
	err := adapter.TestConnection(context.Background())

	// assert
	assert.Equal(t, hypervisor.CodeConnectionFailed, hypervisor.CodeOf(err))
	assert.True(t, hypervisor.IsRetriable(err))
}

func Test_CreateVM_AllocatesAnIDAndPollsTheTask(t *testing.T) {
	// arrange
	polls := 0
	var createBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api2/json/cluster/nextid", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, "105")
	})
	mux.HandleFunc("POST /api2/json/nodes/pve1/qemu", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
		writeData(w, "UPID:pve1:0001:create")
	})
	mux.HandleFunc("GET /api2/json/nodes/pve1/tasks/UPID:pve1:0001:create/status", func(w http.ResponseWriter, _ *http.Request) {
		polls++
		if polls < 2 {
			writeData(w, taskStatus{Status: "running"})
			return
		}
		writeData(w, taskStatus{Status: "stopped", ExitStatus: "OK"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	// act
	result, err := adapter.CreateVM(context.Background(), hypervisor.VMSpec{
		Name:       "ci-runner-01",
		CPU:        4,
		MemoryMB:   8192,
		DiskGB:     80,
		TargetNode: "pve1",
		Datastore:  "local-lvm",
		Networks:   []string{"vmbr0"},
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "pve1/105", result.HypervisorRef)
	assert.Equal(t, "ci-runner-01", result.Hostname)
	assert.NotEmpty(t, result.Warning)
	assert.GreaterOrEqual(t, polls, 2)

	assert.Equal(t, float64(105), createBody["vmid"])
	assert.Equal(t, float64(4), createBody["cores"])
	assert.Equal(t, float64(8192), createBody["memory"])
	assert.Equal(t, "local-lvm:80", createBody["scsi0"])
	assert.Equal(t, "virtio,bridge=vmbr0", createBody["net0"])
}

func Test_CreateVM_CapacityFault_MapsToResourceExhausted(t *testing.T) {
	// arrange
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api2/json/cluster/nextid", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, "106")
	})
	mux.HandleFunc("POST /api2/json/nodes/pve1/qemu", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, "UPID:pve1:0002:create")
	})
	mux.HandleFunc("GET /api2/json/nodes/pve1/tasks/UPID:pve1:0002:create/status", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, taskStatus{Status: "stopped", ExitStatus: "storage 'local-lvm' does not have enough free space"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	// act
	_, err := adapter.CreateVM(context.Background(), hypervisor.VMSpec{
		Name:       "ci-runner-02",
		CPU:        2,
		MemoryMB:   4096,
		DiskGB:     500,
		TargetNode: "pve1",
		Datastore:  "local-lvm",
	})

	// assert
	assert.Equal(t, hypervisor.CodeResourceExhausted, hypervisor.CodeOf(err))
	assert.True(t, hypervisor.IsRetriable(err))
}

func Test_CreateVM_TaskNeverFinishing_MapsToOperationTimeout(t *testing.T) {
	// arrange
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api2/json/cluster/nextid", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, "107")
	})
	mux.HandleFunc("POST /api2/json/nodes/pve1/qemu", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, "UPID:pve1:0003:create")
	})
	mux.HandleFunc("GET /api2/json/nodes/pve1/tasks/UPID:pve1:0003:create/status", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, taskStatus{Status: "running"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	// act
	_, err := adapter.CreateVM(context.Background(), hypervisor.VMSpec{
		Name:       "ci-runner-03",
		CPU:        1,
		MemoryMB:   1024,
		DiskGB:     10,
		TargetNode: "pve1",
		Datastore:  "local-lvm",
	})

	// assert
	assert.Equal(t, hypervisor.CodeOperationTimeout, hypervisor.CodeOf(err))
}

func Test_CreateVM_RejectsIncompleteSpecsBeforeAnyBackendCall(t *testing.T) {
	adapter := newTestAdapter(t, "https://never-called.example")

	testCases := []struct {
		name string
		spec hypervisor.VMSpec
	}{
		{name: "missing name", spec: hypervisor.VMSpec{TargetNode: "pve1", Datastore: "local"}},
		{name: "missing target node", spec: hypervisor.VMSpec{Name: "x", Datastore: "local"}},
		{name: "missing datastore", spec: hypervisor.VMSpec{Name: "x", TargetNode: "pve1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := adapter.CreateVM(context.Background(), tc.spec)

			assert.Equal(t, hypervisor.CodeInvalidVMSpec, hypervisor.CodeOf(err))
		})
	}
}

func Test_GetVM_MapsRuntimeFields(t *testing.T) {
	// arrange
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api2/json/nodes/pve1/qemu/105/status/current", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, vmStatus{Status: "running", Name: "ci-runner-01", CPUs: 4, MaxMem: 8 << 30, Uptime: 3600})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	// act
	vm, err := adapter.GetVM(context.Background(), "pve1/105")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "ci-runner-01", vm.Name)
	assert.Equal(t, "pve1", vm.Node)
	assert.Equal(t, hypervisor.VMStateRunning, vm.State)
	assert.Equal(t, 4, vm.CPU)
	assert.Equal(t, 8192, vm.MemoryMB)
	assert.Equal(t, int64(3600), vm.UptimeSeconds)
}

func Test_GetVM_MalformedRef_ReportsResourceNotFound(t *testing.T) {
	adapter := newTestAdapter(t, "https://never-called.example")

	_, err := adapter.GetVM(context.Background(), "just-a-name")

	assert.Equal(t, hypervisor.CodeResourceNotFound, hypervisor.CodeOf(err))
}

func Test_ListResources_BuildsTheNodeTree(t *testing.T) {
	// arrange
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api2/json/cluster/resources", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, []clusterResource{
			{ID: "node/pve1", Type: "node", Node: "pve1", MaxMem: 64 << 30, Mem: 16 << 30},
			{ID: "storage/pve1/local-lvm", Type: "storage", Node: "pve1", Storage: "local-lvm", MaxDisk: 500 << 30, Disk: 100 << 30},
			{ID: "qemu/100", Type: "qemu", Node: "pve1"},
		})
	})
	mux.HandleFunc("GET /api2/json/nodes/pve1/network", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, []networkEntry{{Iface: "vmbr0", Type: "bridge"}})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	// act
	resources, err := adapter.ListResources(context.Background())

	// assert
	require.NoError(t, err)
	require.Len(t, resources, 1)

	node := resources[0]
	assert.Equal(t, hypervisor.ResourceKindCompute, node.Kind)
	assert.Equal(t, "pve1", node.Name)
	assert.Equal(t, int64(48<<30), node.CapacityFree)

	require.Len(t, node.Children, 2)
	assert.Equal(t, hypervisor.ResourceKindStorage, node.Children[0].Kind)
	assert.Equal(t, "local-lvm", node.Children[0].Name)
	assert.Equal(t, int64(400<<30), node.Children[0].CapacityFree)
	assert.Equal(t, hypervisor.ResourceKindNetwork, node.Children[1].Kind)
	assert.Equal(t, "vmbr0", node.Children[1].Name)
}

func Test_DeleteVM_WaitsForTheRemovalTask(t *testing.T) {
	// arrange
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api2/json/nodes/pve1/qemu/105", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, "UPID:pve1:0004:delete")
	})
	mux.HandleFunc("GET /api2/json/nodes/pve1/tasks/UPID:pve1:0004:delete/status", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, taskStatus{Status: "stopped", ExitStatus: "OK"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	// act
	err := adapter.DeleteVM(context.Background(), "pve1/105")

	// assert
	assert.NoError(t, err)
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()

	adapter, err := NewAdapter(Config{
		BaseURL:          baseURL,
		TokenID:          "vmgate@pve!prov",
		Secret:           "s3cret",
		Timeout:          2 * time.Second,
		TaskPollInterval: time.Millisecond,
		TaskTimeout:      50 * time.Millisecond,
	})
	require.NoError(t, err)

	return adapter
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

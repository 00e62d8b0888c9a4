package proxmox

// Response payload shapes for the subset of the Proxmox VE API this adapter
// touches. Fields not read by the adapter are omitted.

type versionData struct {
	Version string `json:"version"`
	Release string `json:"release"`
}

type clusterResource struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Node    string `json:"node"`
	Storage string `json:"storage"`
	MaxMem  int64  `json:"maxmem"`
	Mem     int64  `json:"mem"`
	MaxDisk int64  `json:"maxdisk"`
	Disk    int64  `json:"disk"`
}

type networkEntry struct {
	Iface string `json:"iface"`
	Type  string `json:"type"`
}

type taskStatus struct {
	Status     string `json:"status"`
	ExitStatus string `json:"exitstatus"`
}

type vmStatus struct {
	Status string  `json:"status"`
	Name   string  `json:"name"`
	CPUs   float64 `json:"cpus"`
	MaxMem int64   `json:"maxmem"`
	Uptime int64   `json:"uptime"`
}

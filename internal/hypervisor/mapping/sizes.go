package mapping

// SizeSpec is the resource envelope behind one size category.
type SizeSpec struct {
	CPU      int
	MemoryMB int
	DiskGB   int
}

// sizeCatalog fixes what each category means. Requests carry only the
// category; the concrete envelope is an infrastructure decision.
var sizeCatalog = map[string]SizeSpec{
	"S":  {CPU: 1, MemoryMB: 2048, DiskGB: 25},
	"M":  {CPU: 2, MemoryMB: 4096, DiskGB: 50},
	"L":  {CPU: 4, MemoryMB: 8192, DiskGB: 100},
	"XL": {CPU: 8, MemoryMB: 16384, DiskGB: 200},
}

// SizeSpecFor resolves a size category against the catalog.
func SizeSpecFor(size string) (SizeSpec, bool) {
	spec, ok := sizeCatalog[size]

	return spec, ok
}

package models

// ResourceSnapshot is a point-in-time view of the host resources that matter
// when sizing a native build: usable processing units and free physical
// memory. It is read once per build configuration and never refreshed.
type ResourceSnapshot struct {
	// AvailableCPUCount is the number of usable processing units.
	// Providers normalize this to at least 1.
	AvailableCPUCount int

	// AvailableMemory is the free physical memory in bytes at sampling time.
	// Zero is a meaningful value, not an error.
	AvailableMemory uint64
}

type GPUVendor string

const (
	GPUVendorAMDATI GPUVendor = "AMDATI"
)

// GPU describes a single device as reported by the vendor management tool.
type GPU struct {
	// Self-reported index of the device in the system
	Index uint64
	// Model name of the GPU e.g. Instinct MI210
	Name string
	// Maker of the GPU, e.g. "AMDATI"
	Vendor GPUVendor
	// Total GPU memory in mebibytes (MiB)
	Memory uint64
	// PCI address of the device, in the format AAAA:BB:CC.C
	// Will be empty when the address cannot be determined
	PCIAddress string
	// Compiler target reported for the device, e.g. gfx90a.
	// Empty when the tool does not report one.
	Architecture string
}

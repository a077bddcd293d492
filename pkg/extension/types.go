package extension

import (
	"github.com/Masterminds/semver"
)

// Module describes one compiled extension: a named shared object built from
// a set of device sources against vendor BLAS libraries.
type Module struct {
	// Name of the produced extension, e.g. rocsolidxgemm_.
	Name string

	// Sources are the staged .cu files the module compiles.
	Sources []string

	// IncludeDirs are extra -I paths.
	IncludeDirs []string

	// Libraries are linked with -l, e.g. rocblas.
	Libraries []string

	// CXXFlags apply to host compilation, DeviceFlags to hipcc.
	CXXFlags    []string
	DeviceFlags []string
}

// Plan is everything the runner needs to build the extensions: the staged
// modules, the resolved offload targets, and the throttled parallelism.
type Plan struct {
	Modules    []Module
	Archs      []string
	HIPVersion *semver.Version

	// JobLimit caps how many compiler processes run concurrently.
	// Always at least 1.
	JobLimit int
}

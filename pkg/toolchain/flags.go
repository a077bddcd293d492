package toolchain

import (
	"fmt"

	"github.com/Masterminds/semver"
	"github.com/samber/lo"
)

// baseDeviceFlags is the fixed hipcc flag set used for every kernel source.
var baseDeviceFlags = []string{
	"-mllvm", "-enable-post-misched=0",
	"-mllvm", "-amdgpu-early-inline-all=true",
	"-mllvm", "-amdgpu-function-calls=false",
	"-mllvm", "--amdgpu-kernarg-preload-count=16",
	"-mllvm", "-amdgpu-coerce-illegal-types=1",
	"-Wno-unused-result",
	"-Wno-switch-bool",
	"-Wno-vla-cxx-extension",
	"-Wno-undefined-func-template",
	"-fgpu-flush-denormals-to-zero",
}

// baseCXXFlags is the host compiler flag set shared by all extensions.
var baseCXXFlags = []string{
	"-O3",
	"-DLEGACY_HIPBLAS_DIRECT=ON",
}

// solverDeviceFlags is the device flag set for the tuned GEMM solver
// extensions, applied before the architecture and version gated flags.
var solverDeviceFlags = []string{
	"-O3",
	"-U__CUDA_NO_HALF_OPERATORS__",
	"-U__CUDA_NO_HALF_CONVERSIONS__",
	"-ftemplate-depth=1024",
	"-DLEGACY_HIPBLAS_DIRECT=ON",
}

// FP8Define enables fp8 code paths when the host framework exposes the
// float8_e4m3fnuz type.
const FP8Define = "-DENABLE_TORCH_FP8"

// versionGate adds flags for HIP versions in the half-open interval
// (above, below); a nil below means unbounded.
// These mirror the version checks in composable_kernel's build configuration.
type versionGate struct {
	above *semver.Version
	below *semver.Version
	flags []string
}

var deviceFlagGates = []versionGate{
	{
		above: semver.MustParse("5.7.23302"),
		flags: []string{"-fno-offload-uniform-block"},
	},
	{
		above: semver.MustParse("6.1.40090"),
		flags: []string{"-mllvm", "-enable-post-misched=0"},
	},
	{
		above: semver.MustParse("6.2.41132"),
		flags: []string{
			"-mllvm", "-amdgpu-early-inline-all=true",
			"-mllvm", "-amdgpu-function-calls=false",
		},
	},
	{
		above: semver.MustParse("6.2.41133"),
		below: semver.MustParse("6.3.0"),
		flags: []string{"-mllvm", "-amdgpu-coerce-illegal-types=1"},
	},
}

// OffloadArchFlags turns a validated architecture list into compiler
// offload flags.
func OffloadArchFlags(archs []string) []string {
	return lo.Map(archs, func(arch string, _ int) string {
		return fmt.Sprintf("--offload-arch=%s", arch)
	})
}

// DeviceFlags assembles the hipcc flag set for the given architectures and
// HIP version: offload targets, the fixed base set, then the version gated
// additions in order.
func DeviceFlags(hipVersion *semver.Version, archs []string) []string {
	flags := OffloadArchFlags(archs)
	flags = append(flags, baseDeviceFlags...)
	for _, gate := range deviceFlagGates {
		if !hipVersion.GreaterThan(gate.above) {
			continue
		}
		if gate.below != nil && !hipVersion.LessThan(gate.below) {
			continue
		}
		flags = append(flags, gate.flags...)
	}
	return flags
}

// CXXFlags returns the host compiler flag set.
func CXXFlags() []string {
	return append([]string{}, baseCXXFlags...)
}

// SolverDeviceFlags returns the device flag set for a tuned GEMM solver
// extension. enableFP8 appends the fp8 define used by the hipblaslt solver.
func SolverDeviceFlags(hipVersion *semver.Version, archs []string, enableFP8 bool) []string {
	flags := append([]string{}, solverDeviceFlags...)
	flags = append(flags, DeviceFlags(hipVersion, archs)...)
	if enableFP8 {
		flags = append(flags, FP8Define)
	}
	return flags
}

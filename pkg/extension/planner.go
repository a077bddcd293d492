package extension

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Vivicai1005/aiter/pkg/buildenv"
	"github.com/Vivicai1005/aiter/pkg/compute/capacity"
	"github.com/Vivicai1005/aiter/pkg/compute/throttle"
	"github.com/Vivicai1005/aiter/pkg/models"
	"github.com/Vivicai1005/aiter/pkg/toolchain"
)

// ExcludedPrebuildOps are skipped when prebuilding the full operator set.
// The MHA kernels are compiled lazily at runtime instead, their templates
// are too expensive to instantiate in every wheel.
var ExcludedPrebuildOps = []string{
	"module_mha_fwd",
	"module_mha_varlen_fwd",
	"module_mha_bwd",
	"module_mha_varlen_bwd",
}

const (
	// SolverSourceDir holds the tuned GEMM solver sources relative to the
	// project root. They are staged into the build dir as .cu before use.
	SolverSourceDir = "gradlib/csrc"

	prebuildModuleName = "aiter_"
	pybindSource       = "pybind.cu"
)

type PlannerParams struct {
	Config           buildenv.Config
	HIPVersion       *semver.Version
	GPUs             []models.GPU
	CapacityProvider capacity.Provider
	ThrottlePolicy   throttle.Policy

	// EnableFP8 turns on the fp8 code path of the hipblaslt solver. Set it
	// when the host framework exposes the float8_e4m3fnuz type.
	EnableFP8 bool
}

// Planner resolves a build environment into a concrete Plan.
type Planner struct {
	config           buildenv.Config
	hipVersion       *semver.Version
	gpus             []models.GPU
	capacityProvider capacity.Provider
	throttlePolicy   throttle.Policy
	enableFP8        bool
}

func NewPlanner(params PlannerParams) *Planner {
	return &Planner{
		config:           params.Config,
		hipVersion:       params.HIPVersion,
		gpus:             params.GPUs,
		capacityProvider: params.CapacityProvider,
		throttlePolicy:   params.ThrottlePolicy,
		enableFP8:        params.EnableFP8,
	}
}

func (p *Planner) Plan(ctx context.Context) (*Plan, error) {
	if err := toolchain.ValidateArchs(p.config.GPUArchs); err != nil {
		return nil, err
	}
	archs := toolchain.ResolveNativeArchs(ctx, p.config.GPUArchs, p.gpus)

	snapshot, err := p.capacityProvider.GetResourceSnapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to snapshot host resources")
	}

	jobLimit, err := throttle.ComputeJobLimit(p.config.RequestedJobs, snapshot, p.throttlePolicy)
	if err != nil {
		return nil, err
	}
	if jobLimit != p.config.RequestedJobs {
		log.Ctx(ctx).Info().
			Int("Requested", p.config.RequestedJobs).
			Int("JobLimit", jobLimit).
			Msg("Throttled build parallelism to avoid memory pressure")
	}

	plan := &Plan{
		Archs:      archs,
		HIPVersion: p.hipVersion,
		JobLimit:   jobLimit,
		Modules:    p.solverModules(archs),
	}

	if p.config.PrebuildKernels {
		prebuild, err := p.prebuildModule(archs)
		if err != nil {
			return nil, err
		}
		plan.Modules = append([]Module{prebuild}, plan.Modules...)
	}

	return plan, nil
}

// solverModules describes the two tuned GEMM solver extensions. Their
// sources are the staged .cu renditions of gradlib/csrc.
func (p *Planner) solverModules(archs []string) []Module {
	return []Module{
		{
			Name:        "rocsolidxgemm_",
			Sources:     []string{filepath.Join(p.config.BuildDir, "rocsolgemm.cu")},
			Libraries:   []string{"rocblas"},
			CXXFlags:    toolchain.CXXFlags(),
			DeviceFlags: toolchain.SolverDeviceFlags(p.hipVersion, archs, false),
		},
		{
			Name:        "hipbsolidxgemm_",
			Sources:     []string{filepath.Join(p.config.BuildDir, "hipbsolgemm.cu")},
			Libraries:   []string{"hipblaslt"},
			CXXFlags:    toolchain.CXXFlags(),
			DeviceFlags: toolchain.SolverDeviceFlags(p.hipVersion, archs, p.enableFP8),
		},
	}
}

// prebuildModule compiles the full operator set ahead of time, minus the
// excluded ops and the per-op pybind shims that would collide with the
// aggregate module's own bindings.
func (p *Planner) prebuildModule(archs []string) (Module, error) {
	pattern := filepath.Join(p.config.RootDir, "csrc", "**", "*.{cu,cpp}")
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return Module{}, errors.Wrapf(err, "failed to enumerate operator sources under %s", pattern)
	}

	sources := lo.Reject(matches, func(source string, _ int) bool {
		base := filepath.Base(source)
		if base == pybindSource {
			return true
		}
		op := strings.TrimSuffix(base, filepath.Ext(base))
		return lo.Contains(ExcludedPrebuildOps, op)
	})
	if len(sources) == 0 {
		return Module{}, errors.Errorf("no operator sources found under %s", filepath.Join(p.config.RootDir, "csrc"))
	}

	return Module{
		Name:        prebuildModuleName,
		Sources:     sources,
		IncludeDirs: []string{p.config.CKDir},
		CXXFlags:    toolchain.CXXFlags(),
		DeviceFlags: toolchain.DeviceFlags(p.hipVersion, archs),
	}, nil
}

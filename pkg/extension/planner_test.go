//go:build unit || !integration

package extension

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/Vivicai1005/aiter/pkg/buildenv"
	"github.com/Vivicai1005/aiter/pkg/compute/throttle"
	"github.com/Vivicai1005/aiter/pkg/logger"
	"github.com/Vivicai1005/aiter/pkg/models"
)

type fixedCapacityProvider struct {
	snapshot models.ResourceSnapshot
}

func (p fixedCapacityProvider) GetResourceSnapshot(_ context.Context) (models.ResourceSnapshot, error) {
	return p.snapshot, nil
}

func testConfig(t *testing.T) buildenv.Config {
	t.Helper()
	root := t.TempDir()
	return buildenv.Config{
		BuildTarget:   buildenv.TargetROCm,
		GPUArchs:      []string{"gfx90a"},
		CKDir:         filepath.Join(root, "3rdparty", "composable_kernel"),
		RequestedJobs: 1,
		RootDir:       root,
		BuildDir:      filepath.Join(root, "build"),
		BlobDir:       filepath.Join(root, "build", "blob"),
		MetaDir:       filepath.Join(root, "aiter_meta"),
	}
}

func testPlanner(t *testing.T, cfg buildenv.Config, snapshot models.ResourceSnapshot) *Planner {
	t.Helper()
	return NewPlanner(PlannerParams{
		Config:           cfg,
		HIPVersion:       semver.MustParse("6.2.41134"),
		CapacityProvider: fixedCapacityProvider{snapshot: snapshot},
		ThrottlePolicy:   throttle.DefaultPolicy(),
	})
}

func bigHost() models.ResourceSnapshot {
	return models.ResourceSnapshot{
		AvailableCPUCount: 16,
		AvailableMemory:   (40 * datasize.GB).Bytes(),
	}
}

func TestPlanSolverModules(t *testing.T) {
	logger.ConfigureTestLogging(t)
	cfg := testConfig(t)

	plan, err := testPlanner(t, cfg, bigHost()).Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Modules, 2)

	rocsol := plan.Modules[0]
	require.Equal(t, "rocsolidxgemm_", rocsol.Name)
	require.Equal(t, []string{filepath.Join(cfg.BuildDir, "rocsolgemm.cu")}, rocsol.Sources)
	require.Equal(t, []string{"rocblas"}, rocsol.Libraries)
	require.Contains(t, rocsol.DeviceFlags, "--offload-arch=gfx90a")
	require.NotContains(t, rocsol.DeviceFlags, "-DENABLE_TORCH_FP8")

	hipbsol := plan.Modules[1]
	require.Equal(t, "hipbsolidxgemm_", hipbsol.Name)
	require.Equal(t, []string{"hipblaslt"}, hipbsol.Libraries)
}

func TestPlanEnablesFP8OnlyForHipblasltSolver(t *testing.T) {
	logger.ConfigureTestLogging(t)
	cfg := testConfig(t)

	planner := NewPlanner(PlannerParams{
		Config:           cfg,
		HIPVersion:       semver.MustParse("6.2.41134"),
		CapacityProvider: fixedCapacityProvider{snapshot: bigHost()},
		ThrottlePolicy:   throttle.DefaultPolicy(),
		EnableFP8:        true,
	})

	plan, err := planner.Plan(context.Background())
	require.NoError(t, err)
	require.NotContains(t, plan.Modules[0].DeviceFlags, "-DENABLE_TORCH_FP8")
	require.Contains(t, plan.Modules[1].DeviceFlags, "-DENABLE_TORCH_FP8")
}

func TestPlanThrottlesJobLimit(t *testing.T) {
	logger.ConfigureTestLogging(t)
	cfg := testConfig(t)
	cfg.RequestedJobs = 1

	plan, err := testPlanner(t, cfg, bigHost()).Plan(context.Background())
	require.NoError(t, err)
	// 16 cores at 80% allow 12 jobs, 40GB at 9GB per job allow 4
	require.Equal(t, 4, plan.JobLimit)
}

func TestPlanPassesThroughLargeRequests(t *testing.T) {
	logger.ConfigureTestLogging(t)
	cfg := testConfig(t)
	cfg.RequestedJobs = 20

	plan, err := testPlanner(t, cfg, bigHost()).Plan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 20, plan.JobLimit)
}

func TestPlanRejectsInvalidArch(t *testing.T) {
	logger.ConfigureTestLogging(t)
	cfg := testConfig(t)
	cfg.GPUArchs = []string{"sm_90"}

	_, err := testPlanner(t, cfg, bigHost()).Plan(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "sm_90")
}

func TestPlanResolvesNativeArch(t *testing.T) {
	logger.ConfigureTestLogging(t)
	cfg := testConfig(t)
	cfg.GPUArchs = []string{"native"}

	planner := NewPlanner(PlannerParams{
		Config:           cfg,
		HIPVersion:       semver.MustParse("6.2.41134"),
		GPUs:             []models.GPU{{Name: "Instinct MI300X", Architecture: "gfx942"}},
		CapacityProvider: fixedCapacityProvider{snapshot: bigHost()},
		ThrottlePolicy:   throttle.DefaultPolicy(),
	})

	plan, err := planner.Plan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"gfx942"}, plan.Archs)
	require.Contains(t, plan.Modules[0].DeviceFlags, "--offload-arch=gfx942")
}

func TestPlanPrebuildModule(t *testing.T) {
	logger.ConfigureTestLogging(t)
	cfg := testConfig(t)
	cfg.PrebuildKernels = true

	csrc := filepath.Join(cfg.RootDir, "csrc")
	for _, name := range []string{
		"module_gemm_a8w8.cu",
		"module_mha_fwd.cu",
		"module_mha_varlen_bwd.cu",
		"pybind.cu",
		filepath.Join("kernels", "module_norm.cu"),
	} {
		path := filepath.Join(csrc, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
		require.NoError(t, os.WriteFile(path, []byte("// kernel"), 0o644))
	}

	plan, err := testPlanner(t, cfg, bigHost()).Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Modules, 3)

	prebuild := plan.Modules[0]
	require.Equal(t, "aiter_", prebuild.Name)
	require.ElementsMatch(t, []string{
		filepath.Join(csrc, "module_gemm_a8w8.cu"),
		filepath.Join(csrc, "kernels", "module_norm.cu"),
	}, prebuild.Sources)
	require.Equal(t, []string{cfg.CKDir}, prebuild.IncludeDirs)
}

func TestPlanPrebuildRequiresSources(t *testing.T) {
	logger.ConfigureTestLogging(t)
	cfg := testConfig(t)
	cfg.PrebuildKernels = true

	_, err := testPlanner(t, cfg, bigHost()).Plan(context.Background())
	require.Error(t, err)
}

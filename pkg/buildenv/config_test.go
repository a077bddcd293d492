//go:build unit || !integration

package buildenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Vivicai1005/aiter/pkg/logger"
)

func setupProjectRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "3rdparty", "composable_kernel"), os.ModePerm))
	return root
}

func TestLoadDefaults(t *testing.T) {
	logger.ConfigureTestLogging(t)
	root := setupProjectRoot(t)
	t.Setenv("BUILD_TARGET", "rocm")

	cfg, err := Load(root)
	require.NoError(t, err)

	require.Equal(t, TargetROCm, cfg.BuildTarget)
	require.Equal(t, []string{"native"}, cfg.GPUArchs)
	require.Equal(t, filepath.Join(root, "3rdparty", "composable_kernel"), cfg.CKDir)
	require.Equal(t, 1, cfg.RequestedJobs)
	require.False(t, cfg.PrebuildKernels)
	require.Equal(t, filepath.Join(root, "build"), cfg.BuildDir)
	require.Equal(t, filepath.Join(root, "build", "blob"), cfg.BlobDir)
	require.Equal(t, filepath.Join(root, "aiter_meta"), cfg.MetaDir)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	logger.ConfigureTestLogging(t)
	root := setupProjectRoot(t)
	ckDir := filepath.Join(root, "ck")
	require.NoError(t, os.MkdirAll(ckDir, os.ModePerm))

	t.Setenv("BUILD_TARGET", "rocm")
	t.Setenv("GPU_ARCHS", "gfx90a;gfx942")
	t.Setenv("CK_DIR", ckDir)
	t.Setenv("MAX_JOBS", "8")
	t.Setenv("PREBUILD_KERNELS", "1")

	cfg, err := Load(root)
	require.NoError(t, err)

	require.Equal(t, []string{"gfx90a", "gfx942"}, cfg.GPUArchs)
	require.Equal(t, ckDir, cfg.CKDir)
	require.Equal(t, 8, cfg.RequestedJobs)
	require.True(t, cfg.PrebuildKernels)
}

func TestLoadNonPositiveJobsFallsBackToDefault(t *testing.T) {
	logger.ConfigureTestLogging(t)
	root := setupProjectRoot(t)
	t.Setenv("BUILD_TARGET", "rocm")
	t.Setenv("MAX_JOBS", "0")

	cfg, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.RequestedJobs)
}

func TestLoadRejectsCUDA(t *testing.T) {
	logger.ConfigureTestLogging(t)
	root := setupProjectRoot(t)
	t.Setenv("BUILD_TARGET", "cuda")

	_, err := Load(root)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsupportedTarget))
}

func TestLoadRejectsUnknownTarget(t *testing.T) {
	logger.ConfigureTestLogging(t)
	root := setupProjectRoot(t)
	t.Setenv("BUILD_TARGET", "metal")

	_, err := Load(root)
	require.Error(t, err)
}

func TestLoadRequiresComposableKernel(t *testing.T) {
	logger.ConfigureTestLogging(t)
	root := t.TempDir()
	t.Setenv("BUILD_TARGET", "rocm")

	_, err := Load(root)
	require.Error(t, err)
	require.Contains(t, err.Error(), "composable_kernel")
}

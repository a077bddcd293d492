//go:build unit || !integration

package plan

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Vivicai1005/aiter/pkg/logger"
)

func TestPlanCommand(t *testing.T) {
	logger.ConfigureTestLogging(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "3rdparty", "composable_kernel"), os.ModePerm))
	t.Setenv("BUILD_TARGET", "rocm")
	t.Setenv("GPU_ARCHS", "gfx90a")

	cmd := NewCmd()
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--root", root, "--hip-version", "6.2.41134"})

	require.NoError(t, cmd.Execute())

	output := out.String()
	require.Contains(t, output, "Job limit:")
	require.Contains(t, output, "rocsolidxgemm_")
	require.Contains(t, output, "hipbsolidxgemm_")
	require.Contains(t, output, "--offload-arch=gfx90a")
}

func TestPlanCommandRejectsBadArch(t *testing.T) {
	logger.ConfigureTestLogging(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "3rdparty", "composable_kernel"), os.ModePerm))
	t.Setenv("BUILD_TARGET", "rocm")
	t.Setenv("GPU_ARCHS", "sm_90")

	cmd := NewCmd()
	cmd.SetContext(context.Background())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--root", root, "--hip-version", "6.2.41134"})

	require.Error(t, cmd.Execute())
}

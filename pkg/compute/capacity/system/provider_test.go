//go:build unit || !integration

package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Vivicai1005/aiter/pkg/logger"
)

func TestPhysicalProviderSnapshot(t *testing.T) {
	logger.ConfigureTestLogging(t)

	snapshot, err := NewPhysicalProvider().GetResourceSnapshot(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, snapshot.AvailableCPUCount, 1)
}

func TestGetFreeDiskSpace(t *testing.T) {
	logger.ConfigureTestLogging(t)

	free, err := GetFreeDiskSpace(t.TempDir())
	require.NoError(t, err)
	require.Greater(t, free, uint64(0))
}

func TestGetGPUsToleratesMissingTools(t *testing.T) {
	logger.ConfigureTestLogging(t)

	// hosts without rocm-smi must not fail, detection is best effort
	NewPhysicalProvider().GetGPUs(context.Background())
}

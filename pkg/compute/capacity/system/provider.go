package system

import (
	"context"
	"fmt"
	"runtime"

	"github.com/pbnjay/memory"
	"github.com/ricochet2200/go-disk-usage/du"
	"github.com/rs/zerolog/log"

	"github.com/Vivicai1005/aiter/pkg/compute/capacity"
	"github.com/Vivicai1005/aiter/pkg/compute/capacity/system/gpu"
	"github.com/Vivicai1005/aiter/pkg/models"
)

type PhysicalProvider struct {
	gpuProviders []capacity.GPUProvider
}

func NewPhysicalProvider() *PhysicalProvider {
	return &PhysicalProvider{
		gpuProviders: []capacity.GPUProvider{
			gpu.NewAMDGPUProvider(),
		},
	}
}

func (p *PhysicalProvider) GetResourceSnapshot(ctx context.Context) (models.ResourceSnapshot, error) {
	cpus := runtime.NumCPU()
	if cpus < 1 {
		cpus = 1
	}
	return models.ResourceSnapshot{
		AvailableCPUCount: cpus,
		AvailableMemory:   memory.FreeMemory(),
	}, nil
}

// GetGPUs collects devices from every configured vendor tool. A tool that is
// missing or misbehaving only produces a warning: some hosts have the tool
// installed but in a misconfigured state, e.g. their drivers are missing or
// the smi can't communicate with the drivers.
func (p *PhysicalProvider) GetGPUs(ctx context.Context) []models.GPU {
	var gpus []models.GPU
	for _, gpuProvider := range p.gpuProviders {
		detected, err := gpuProvider.GetGPUs(ctx)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).
				Msgf("Cannot inspect %s so they will not be used", gpuProvider.ResourceType())
			continue
		}
		gpus = append(gpus, detected...)
	}
	return gpus
}

// GetFreeDiskSpace returns the free bytes on the volume holding path.
func GetFreeDiskSpace(path string) (uint64, error) {
	usage := du.NewDiskUsage(path)
	if usage == nil {
		return 0, fmt.Errorf("GetFreeDiskSpace: unable to get disk space for path %s", path)
	}
	return usage.Free(), nil
}

// compile-time check that the provider implements the interface
var _ capacity.Provider = (*PhysicalProvider)(nil)

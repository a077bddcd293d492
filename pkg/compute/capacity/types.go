package capacity

import (
	"context"

	"github.com/Vivicai1005/aiter/pkg/models"
)

// Provider samples the host resources available for compile jobs.
// Implementations can read the physical host, or return fixed values
// when callers want reproducible build configuration.
type Provider interface {
	// GetResourceSnapshot returns usable processing units and free physical
	// memory. The returned CPU count is always at least 1.
	GetResourceSnapshot(ctx context.Context) (models.ResourceSnapshot, error)
}

// GPUProvider detects installed GPU devices through a vendor management
// tool. A host without the tool is not an error condition.
type GPUProvider interface {
	// GetGPUs returns the detected devices, which may be empty.
	GetGPUs(ctx context.Context) ([]models.GPU, error)

	// A human-readable string that explains what this provider can detect.
	ResourceType() string
}

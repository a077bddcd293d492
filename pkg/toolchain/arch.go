package toolchain

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Vivicai1005/aiter/pkg/models"
)

// NativeArch asks the compiler to target whatever device is present on the
// build host instead of an explicit gfx target.
const NativeArch = "native"

// allowedArchs is the set of GPU architectures the kernel sources support.
var allowedArchs = []string{
	NativeArch,
	"gfx90a",
	"gfx940",
	"gfx941",
	"gfx942",
	"gfx1100",
}

// ValidateArchs rejects any architecture outside the supported set.
func ValidateArchs(archs []string) error {
	if len(archs) == 0 {
		return errors.New("at least one GPU architecture is required")
	}
	invalid := lo.Reject(archs, func(arch string, _ int) bool {
		return lo.Contains(allowedArchs, arch)
	})
	if len(invalid) > 0 {
		return errors.Errorf("one of GPU archs of %v is invalid or not supported", invalid)
	}
	return nil
}

// ResolveNativeArchs replaces the "native" placeholder with the architectures
// of the detected devices. When no device reports an architecture the
// placeholder stays, leaving the decision to the compiler.
func ResolveNativeArchs(ctx context.Context, archs []string, gpus []models.GPU) []string {
	if !lo.Contains(archs, NativeArch) {
		return archs
	}

	detected := lo.FilterMap(gpus, func(gpu models.GPU, _ int) (string, bool) {
		return gpu.Architecture, gpu.Architecture != ""
	})
	if len(detected) == 0 {
		log.Ctx(ctx).Debug().Msg("No device architecture detected, leaving native offload to the compiler")
		return archs
	}

	resolved := lo.FlatMap(archs, func(arch string, _ int) []string {
		if arch == NativeArch {
			return detected
		}
		return []string{arch}
	})
	return lo.Uniq(resolved)
}

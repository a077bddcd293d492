package throttle

import (
	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"

	"github.com/Vivicai1005/aiter/pkg/models"
)

// ErrInvalidPolicy is returned when a Policy carries out-of-range constants.
// This is a caller bug, not a runtime condition.
var ErrInvalidPolicy = errors.New("invalid job throttle policy")

// Policy holds the fixed constants used to derive a safe level of build
// parallelism. PerJobMemoryCost is the empirically observed peak memory
// footprint of a single compiler invocation.
type Policy struct {
	PerJobMemoryCost       datasize.ByteSize
	CPUUtilizationFraction float64
}

// DefaultPolicy returns the policy used for kernel extension builds: one
// compile job peaks at roughly 9GB of memory when the compiler runs with
// four threads, and jobs may occupy at most 80% of the host's cores.
func DefaultPolicy() Policy {
	return Policy{
		PerJobMemoryCost:       9 * datasize.GB,
		CPUUtilizationFraction: 0.8,
	}
}

func (p Policy) Validate() error {
	if p.PerJobMemoryCost == 0 {
		return errors.Wrap(ErrInvalidPolicy, "per-job memory cost must be positive")
	}
	if p.CPUUtilizationFraction <= 0 || p.CPUUtilizationFraction > 1 {
		return errors.Wrapf(ErrInvalidPolicy,
			"cpu utilization fraction %v must be in (0, 1]", p.CPUUtilizationFraction)
	}
	return nil
}

// ComputeJobLimit decides how many concurrent compile jobs to run given the
// requested parallelism and a snapshot of host resources.
//
// The memory check only activates when the caller asked for fewer jobs than
// the CPU budget allows: a conservative request signals a resource
// constrained host worth double-checking against free memory. A request at
// or above the CPU ceiling is passed through unchanged. The result is never
// below 1 so the build always makes forward progress.
//
// Callers are expected to supply a snapshot with AvailableCPUCount >= 1;
// see capacity.NewPhysicalProvider.
func ComputeJobLimit(requestedJobs int, snapshot models.ResourceSnapshot, policy Policy) (int, error) {
	if err := policy.Validate(); err != nil {
		return 0, err
	}

	cpuCeiling := int(float64(snapshot.AvailableCPUCount) * policy.CPUUtilizationFraction)
	if cpuCeiling < 1 {
		cpuCeiling = 1
	}

	if requestedJobs >= cpuCeiling {
		return requestedJobs, nil
	}

	memoryCeiling := int(snapshot.AvailableMemory / policy.PerJobMemoryCost.Bytes())

	jobs := cpuCeiling
	if memoryCeiling < jobs {
		jobs = memoryCeiling
	}
	if jobs < 1 {
		jobs = 1
	}
	return jobs, nil
}

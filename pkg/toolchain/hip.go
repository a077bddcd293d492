package toolchain

import (
	"context"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

const hipConfigTool = "hipconfig"

// ParseHIPVersion normalizes the version string reported by the HIP runtime
// into a semantic version. The raw string looks like "6.2.41133-dc1do35a"
// where the suffix is a build identifier, sometimes with extra leading
// fields. Trailing dashes are stripped and the build separator becomes "+"
// so the result compares on the numeric part only.
func ParseHIPVersion(raw string) (*semver.Version, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return nil, errors.New("empty HIP version string")
	}
	normalized := strings.TrimRight(fields[len(fields)-1], "-")
	normalized = strings.ReplaceAll(normalized, "-", "+")

	version, err := semver.NewVersion(normalized)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse HIP version %q", raw)
	}
	return version, nil
}

// DetectHIPVersion queries the installed HIP toolchain for its version.
func DetectHIPVersion(ctx context.Context) (*semver.Version, error) {
	toolPath, err := exec.LookPath(hipConfigTool)
	if err != nil {
		return nil, errors.Wrapf(err, "%s not installed", hipConfigTool)
	}

	output, err := exec.CommandContext(ctx, toolPath, "--version").Output()
	if err != nil {
		return nil, errors.Wrapf(err, "error calling %s --version", hipConfigTool)
	}

	return ParseHIPVersion(string(output))
}

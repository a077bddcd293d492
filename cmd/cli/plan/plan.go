package plan

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/spf13/cobra"

	"github.com/Vivicai1005/aiter/pkg/buildenv"
	"github.com/Vivicai1005/aiter/pkg/compute/capacity/system"
	"github.com/Vivicai1005/aiter/pkg/compute/throttle"
	"github.com/Vivicai1005/aiter/pkg/extension"
	"github.com/Vivicai1005/aiter/pkg/toolchain"
)

func NewCmd() *cobra.Command {
	var rootDir string
	var hipVersionOverride string
	var enableFP8 bool

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve the build environment and print the resulting build plan",
		Long: `Resolve the build environment and print the resulting build plan.

Reads BUILD_TARGET, GPU_ARCHS, CK_DIR, MAX_JOBS and PREBUILD_KERNELS from the
environment, snapshots host resources and prints the extensions that would be
compiled along with the throttled job limit. Nothing is staged or compiled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, rootDir, hipVersionOverride, enableFP8)
		},
	}

	planCmd.Flags().StringVar(&rootDir, "root", ".",
		"Project root holding csrc, gradlib and 3rdparty")
	planCmd.Flags().StringVar(&hipVersionOverride, "hip-version", "",
		"Use this HIP version instead of querying hipconfig")
	planCmd.Flags().BoolVar(&enableFP8, "enable-fp8", false,
		"Enable the fp8 code path of the hipblaslt solver")
	return planCmd
}

func run(cmd *cobra.Command, rootDir, hipVersionOverride string, enableFP8 bool) error {
	ctx := cmd.Context()

	cfg, err := buildenv.Load(rootDir)
	if err != nil {
		return err
	}

	hipVersion, err := resolveHIPVersion(cmd, hipVersionOverride)
	if err != nil {
		return err
	}

	provider := system.NewPhysicalProvider()
	planner := extension.NewPlanner(extension.PlannerParams{
		Config:           cfg,
		HIPVersion:       hipVersion,
		GPUs:             provider.GetGPUs(ctx),
		CapacityProvider: provider,
		ThrottlePolicy:   throttle.DefaultPolicy(),
		EnableFP8:        enableFP8,
	})

	buildPlan, err := planner.Plan(ctx)
	if err != nil {
		return err
	}

	Print(cmd, buildPlan)
	return nil
}

func resolveHIPVersion(cmd *cobra.Command, override string) (*semver.Version, error) {
	if override != "" {
		return toolchain.ParseHIPVersion(override)
	}
	return toolchain.DetectHIPVersion(cmd.Context())
}

// Print writes a human-readable rendition of the plan to the command's
// output stream.
func Print(cmd *cobra.Command, buildPlan *extension.Plan) {
	cmd.Printf("HIP version: %s\n", buildPlan.HIPVersion)
	cmd.Printf("Architectures: %s\n", strings.Join(buildPlan.Archs, ", "))
	cmd.Printf("Job limit: %d\n", buildPlan.JobLimit)
	cmd.Printf("Modules:\n")
	for _, module := range buildPlan.Modules {
		cmd.Printf("  %s\n", module.Name)
		cmd.Printf("    sources:   %s\n", strings.Join(module.Sources, " "))
		if len(module.IncludeDirs) > 0 {
			cmd.Printf("    includes:  %s\n", strings.Join(module.IncludeDirs, " "))
		}
		if len(module.Libraries) > 0 {
			cmd.Printf("    libraries: %s\n", strings.Join(module.Libraries, " "))
		}
		cmd.Printf("    device flags: %s\n", strings.Join(module.DeviceFlags, " "))
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

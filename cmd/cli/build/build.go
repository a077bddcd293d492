package build

import (
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Vivicai1005/aiter/pkg/buildenv"
	"github.com/Vivicai1005/aiter/pkg/compute/capacity/system"
	"github.com/Vivicai1005/aiter/pkg/compute/throttle"
	"github.com/Vivicai1005/aiter/pkg/extension"
	"github.com/Vivicai1005/aiter/pkg/stage"
	"github.com/Vivicai1005/aiter/pkg/toolchain"
)

func NewCmd() *cobra.Command {
	var rootDir string
	var compiler string
	var enableFP8 bool
	var keepMeta bool

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Stage kernel sources and compile the GEMM solver extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, rootDir, compiler, enableFP8, keepMeta)
		},
	}

	buildCmd.Flags().StringVar(&rootDir, "root", ".",
		"Project root holding csrc, gradlib and 3rdparty")
	buildCmd.Flags().StringVar(&compiler, "compiler", "",
		"Device compiler to invoke, hipcc when empty")
	buildCmd.Flags().BoolVar(&enableFP8, "enable-fp8", false,
		"Enable the fp8 code path of the hipblaslt solver")
	buildCmd.Flags().BoolVar(&keepMeta, "keep-meta", false,
		"Keep the staged aiter_meta tree after the build")
	return buildCmd
}

func run(cmd *cobra.Command, rootDir, compiler string, enableFP8, keepMeta bool) error {
	ctx := cmd.Context()

	cfg, err := buildenv.Load(rootDir)
	if err != nil {
		return err
	}

	hipVersion, err := toolchain.DetectHIPVersion(ctx)
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

	if err := stage.StageMetaTree(ctx, cfg.RootDir, cfg.MetaDir); err != nil {
		return err
	}
	if !keepMeta {
		defer func() {
			if err := stage.RemoveMetaTree(cfg.MetaDir); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("Failed to clean up staged meta tree")
			}
		}()
	}

	if _, err := stage.RenameCppToCu(ctx,
		[]string{filepath.Join(cfg.RootDir, filepath.FromSlash(extension.SolverSourceDir))},
		cfg.BuildDir); err != nil {
		return err
	}

	runner := extension.NewRunner(extension.RunnerParams{
		Compiler:  compiler,
		OutputDir: cfg.BuildDir,
	})
	if err := runner.Run(ctx, buildPlan); err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Int("Modules", len(buildPlan.Modules)).
		Int("JobLimit", buildPlan.JobLimit).
		Str("OutputDir", cfg.BuildDir).
		Msg("Build finished")
	return nil
}

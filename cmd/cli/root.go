package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Vivicai1005/aiter/cmd/cli/build"
	"github.com/Vivicai1005/aiter/cmd/cli/plan"
	"github.com/Vivicai1005/aiter/cmd/cli/version"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aiter-build",
		Short: "Build configuration for the aiter GPU kernel extensions",
		Long: `Build configuration for the aiter GPU kernel extensions.

Resolves toolchain and architecture settings from the environment, throttles
build parallelism against host CPU and memory, stages kernel sources and
drives the device compiler.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(plan.NewCmd())
	rootCmd.AddCommand(build.NewCmd())
	rootCmd.AddCommand(version.NewCmd())
	return rootCmd
}

func Execute() {
	rootCmd := NewRootCmd()

	// Ensure commands are able to stop cleanly if someone presses ctrl+c
	ctx, cancel := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer cancel()
	rootCmd.SetContext(ctx)

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Build configuration failed")
		os.Exit(1)
	}
}

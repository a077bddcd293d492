package version

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Vivicai1005/aiter/pkg/toolchain"
	"github.com/Vivicai1005/aiter/pkg/version"
)

func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the tool version and the detected HIP toolchain version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("aiter-build %s\n", version.GitVersion)

			hipVersion, err := toolchain.DetectHIPVersion(cmd.Context())
			if err != nil {
				log.Ctx(cmd.Context()).Warn().Err(err).Msg("No HIP toolchain detected")
				return nil
			}
			cmd.Printf("HIP %s\n", hipVersion)
			return nil
		},
	}
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/spinestock/internal/config"
	"github.com/mrlokans/spinestock/internal/entrypoint"
)

func newServeCommand(version string, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the identity provider and document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(cfg, version)
		},
	}
}

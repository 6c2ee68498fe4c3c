// Package cli implements the spinestock command line: the reference server
// and a client for the per-user book collection.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/spinestock/internal/config"
)

// NewRootCommand builds the spinestock command tree on top of cfg.
func NewRootCommand(version string, cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "spinestock",
		Short:        "Personal book library with catalog lookup",
		Version:      version,
		SilenceUsage: true,
	}

	creds := &credentials{cfg: cfg}
	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Client.ServerURL, "server", cfg.Client.ServerURL, "server base URL (SPINESTOCK_SERVER_URL)")
	flags.StringVar(&creds.email, "email", "", "account email (SPINESTOCK_EMAIL)")
	flags.StringVar(&creds.password, "password", "", "account password (SPINESTOCK_PASSWORD); prompted for when empty")
	flags.DurationVar(&cfg.Client.CommandTimeout, "timeout", cfg.Client.CommandTimeout, "deadline for the whole command")

	root.AddCommand(
		newServeCommand(version, cfg),
		newSignUpCommand(cfg, creds),
		newBooksCommand(cfg, creds),
	)
	return root
}

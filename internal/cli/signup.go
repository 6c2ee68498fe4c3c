package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/spinestock/internal/config"
)

func newSignUpCommand(cfg *config.Config, creds *credentials) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := creds.resolve(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cfg)
			defer cancel()

			s := newSession(cfg)
			defer s.close(ctx)
			if err := s.store.SignUp(ctx, email, password); err != nil {
				return err
			}

			user := s.store.Snapshot().Session.User
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s (%s)\n", user.Email, user.UID)
			return nil
		},
	}
}

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrlokans/spinestock/internal/config"
)

// commandContext bounds a client command by the configured timeout and
// cancels it on interrupt.
func commandContext(cmd *cobra.Command, cfg *config.Config) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if cfg.Client.CommandTimeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Client.CommandTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// signedIn resolves credentials and opens a signed-in session. The caller
// must close it.
func signedIn(ctx context.Context, cmd *cobra.Command, cfg *config.Config, creds *credentials) (*session, error) {
	email, password, err := creds.resolve(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	s := newSession(cfg)
	if err := s.store.SignIn(ctx, email, password); err != nil {
		s.close(ctx)
		return nil, err
	}
	return s, nil
}

package cli

import (
	"context"
	"log"

	"github.com/mrlokans/spinestock/internal/collection"
	"github.com/mrlokans/spinestock/internal/config"
	"github.com/mrlokans/spinestock/internal/identity"
	"github.com/mrlokans/spinestock/internal/metadata"
	"github.com/mrlokans/spinestock/internal/state"
)

// session is a signed-in client: identity provider, remote collection and
// catalog lookup, all driven through one state.Store.
type session struct {
	store    *state.Store
	provider *identity.HTTPProvider
	unwatch  func()
}

func newSession(cfg *config.Config) *session {
	provider := identity.NewHTTPProvider(cfg.Client.ServerURL, cfg.Client.CommandTimeout)
	books := collection.NewHTTPStore(cfg.Client.ServerURL, provider, cfg.Client.CommandTimeout)
	catalog := metadata.NewOpenLibraryClient(cfg.Lookup)

	store := state.NewStore(provider, books, catalog, metadata.NewResolver(catalog))
	return &session{
		store:    store,
		provider: provider,
		unwatch:  store.WatchIdentity(provider),
	}
}

// close signs out, revoking the token issued for this command.
func (s *session) close(ctx context.Context) {
	s.unwatch()
	if !s.store.Snapshot().Session.SignedIn {
		return
	}
	if err := s.store.SignOut(ctx); err != nil {
		log.Printf("[STATE] Sign-out failed: %v", err)
	}
}

package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/spinestock/internal/audit"
	"github.com/mrlokans/spinestock/internal/auth"
	"github.com/mrlokans/spinestock/internal/collection"
	"github.com/mrlokans/spinestock/internal/database"
)

// TaskQueue enqueues background work.
type TaskQueue interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// RouterConfig contains all dependencies of the HTTP router.
type RouterConfig struct {
	Database *database.Database
	Version  string

	// Identity provider
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware
	AuthController *auth.AuthController
	CSRFSecret     []byte
	SecureCookies  bool

	// Document store
	Books collection.Store

	// Task queue (optional). When set, every created book is enriched in
	// the background.
	TaskQueue TaskQueue

	// Activity log (optional)
	Audit *audit.Service
}

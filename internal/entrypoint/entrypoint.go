// Package entrypoint wires the reference server together and runs it until
// an interrupt.
package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/spinestock/internal/audit"
	"github.com/mrlokans/spinestock/internal/auth"
	"github.com/mrlokans/spinestock/internal/collection"
	"github.com/mrlokans/spinestock/internal/config"
	"github.com/mrlokans/spinestock/internal/database"
	"github.com/mrlokans/spinestock/internal/database/users"
	http_controllers "github.com/mrlokans/spinestock/internal/http"
	"github.com/mrlokans/spinestock/internal/metadata"
	"github.com/mrlokans/spinestock/internal/scheduler"
	"github.com/mrlokans/spinestock/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs router until SIGINT or SIGTERM, then calls onShutdown and
// drains the server within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server at %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}
	log.Printf("Shutting down server, waiting up to %v", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server exiting")
	return nil
}

// Run starts the identity provider and document store with background
// enrichment.
func Run(cfg *config.Config, version string) error {
	log.Printf("Starting Spinestock v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	books := collection.NewGormStore(db.DB)

	authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("get SQL DB for sessions: %w", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		return fmt.Errorf("initialize session manager: %w", err)
	}
	authController := auth.NewAuthController(authService, sessionManager, cfg.Auth)
	defer authController.Stop()

	csrfSecret, err := loadCSRFSecret(cfg.Auth.SessionSecret)
	if err != nil {
		return err
	}

	var auditLog *audit.Service
	if cfg.Audit.Enabled {
		auditLog = audit.NewService(db.DB)
	}

	// Background enrichment
	var (
		taskClient    *tasks.Client
		taskQueue     http_controllers.TaskQueue
		taskCtxCancel context.CancelFunc
		sweep         *scheduler.EnrichmentSweepScheduler
		prune         *scheduler.AuditPruneScheduler
	)
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		resolver := metadata.NewResolver(metadata.NewOpenLibraryClient(cfg.Lookup))
		enricher := tasks.NewEnricher(books, resolver, cfg.Enrichment.Concurrency)
		enricher.SetAuditLog(auditLog)
		taskClient.Register(
			tasks.NewEnrichBookQueue(enricher),
			tasks.NewEnrichMissingQueue(enricher),
		)
		if auditLog != nil {
			taskClient.Register(tasks.NewCleanupAuditEventsQueue(auditLog))
		}
		taskQueue = taskClient

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		sweep = scheduler.NewEnrichmentSweepScheduler(taskClient, cfg.Enrichment)
		if err := sweep.Start(taskCtx); err != nil {
			log.Printf("WARNING: enrichment sweep not scheduled: %v", err)
		}
		if auditLog != nil {
			prune = scheduler.NewAuditPruneScheduler(taskClient, cfg.Audit)
			if err := prune.Start(); err != nil {
				log.Printf("WARNING: activity log pruning not scheduled: %v", err)
			}
		}
	} else {
		log.Printf("Task queue disabled, stored books will not be enriched")
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		Version:        version,
		AuthService:    authService,
		SessionManager: sessionManager,
		AuthMiddleware: auth.NewMiddleware(authService, sessionManager),
		AuthController: authController,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Books:          books,
		TaskQueue:      taskQueue,
		Audit:          auditLog,
	})

	onShutdown := func(ctx context.Context) {
		if sweep != nil {
			sweep.Stop()
		}
		if prune != nil {
			prune.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		auditLog.Wait()
	}

	return Serve(router, cfg, onShutdown)
}

// loadCSRFSecret decodes a hex secret, falls back to the raw bytes, and
// generates a fresh one when none is configured.
func loadCSRFSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	secret, err := auth.GenerateCSRFKey()
	if err != nil {
		return nil, fmt.Errorf("generate CSRF secret: %w", err)
	}
	log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	return secret, nil
}

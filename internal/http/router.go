package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/spinestock/internal/auth"
)

// NewRouter creates the server's gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF runs before the session middleware so the session context is not
	// lost when gorilla/csrf replaces the request.
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService, cfg.SessionManager))
	}
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}
	router.Use(cfg.AuthMiddleware.Handler())

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", Ping)

	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(router)
	}

	if cfg.AuthController != nil && cfg.Audit != nil {
		cfg.AuthController.SetAuditLog(cfg.Audit)
	}

	books := NewBooksController(cfg.Books, cfg.TaskQueue, cfg.Audit)
	userBooks := router.Group("/api/users/:uid/books", cfg.AuthMiddleware.RequireOwner("uid"))
	userBooks.GET("", books.List)
	userBooks.POST("", books.Create)
	userBooks.PUT("/:id", books.Update)
	userBooks.DELETE("/:id", books.Delete)

	activity := NewActivityController(cfg.Audit)
	router.GET("/api/users/:uid/activity", cfg.AuthMiddleware.RequireOwner("uid"), activity.List)

	return router
}

package auth

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/mrlokans/spinestock/internal/audit"
	"github.com/mrlokans/spinestock/internal/config"
	"github.com/mrlokans/spinestock/internal/entities"
)

// signupMutex serializes sign-ups so two requests for the same email cannot
// both pass the existence check.
var signupMutex sync.Mutex

// Credentials is the body of the sign-up and sign-in requests.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by sign-up and sign-in.
type SessionResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// AuthController handles the identity API.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	config         config.Auth
	rateLimiter    *RateLimiter
	audit          *audit.Service
}

// NewAuthController creates a new authentication controller.
func NewAuthController(service *Service, sessionManager *SessionManager, cfg config.Auth) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		config:         cfg,
		rateLimiter:    NewRateLimiter(RateLimitConfigFor(cfg)),
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/api/auth")
	group.POST("/signup", ac.rateLimiter.SignUpGuard(), ac.SignUp)
	group.POST("/signin", ac.rateLimiter.SignInGuard(), ac.SignIn)
	group.POST("/signout", ac.SignOut)
	group.GET("/me", ac.Me)
	group.GET("/csrf", ac.CSRFToken)
}

// SetAuditLog records sign-ups, sign-ins and sign-outs to a.
func (ac *AuthController) SetAuditLog(a *audit.Service) {
	ac.audit = a
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

// SignUp creates an account and signs it in.
func (ac *AuthController) SignUp(c *gin.Context) {
	var creds Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	signupMutex.Lock()
	user, err := ac.service.CreateUser(creds.Email, creds.Password)
	signupMutex.Unlock()
	if err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, ErrEmailRequired),
			errors.Is(err, ErrEmailInvalid),
			errors.Is(err, ErrPasswordRequired),
			errors.Is(err, ErrPasswordTooShort),
			errors.Is(err, ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Printf("[AUTH] Failed to create user: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	log.Printf("[AUTH] Created user %s", user.ID)
	ac.audit.LogAuth(user.ID, user.Email, audit.ActionSignUp, c.ClientIP(), c.Request.UserAgent(), true)
	ac.startSession(c, user, http.StatusCreated)
}

// SignIn checks credentials and issues a fresh API token. Throttling is
// done by the route's SignInGuard, which already read the body.
func (ac *AuthController) SignIn(c *gin.Context) {
	var creds Credentials
	if err := c.ShouldBindBodyWith(&creds, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	clientIP := c.ClientIP()

	user, err := ac.service.Authenticate(creds.Email, creds.Password)
	if err != nil {
		ac.audit.LogAuth("", creds.Email, audit.ActionSignIn, clientIP, c.Request.UserAgent(), false)

		switch {
		case errors.Is(err, ErrAccountLocked):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrInvalidPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		default:
			log.Printf("[AUTH] Failed to authenticate: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	ac.audit.LogAuth(user.ID, user.Email, audit.ActionSignIn, clientIP, c.Request.UserAgent(), true)

	ac.startSession(c, user, http.StatusOK)
}

// SignOut revokes the API token and destroys the cookie session.
func (ac *AuthController) SignOut(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrAuthRequired.Error()})
		return
	}

	if err := ac.service.RevokeToken(userID); err != nil {
		log.Printf("[AUTH] Failed to revoke token for %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if ac.sessionManager != nil {
		_ = ac.sessionManager.DestroySession(c.Request)
	}
	ac.audit.LogAuth(userID, GetEmail(c), audit.ActionSignOut, c.ClientIP(), c.Request.UserAgent(), true)

	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

// Me returns the authenticated user.
func (ac *AuthController) Me(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrAuthRequired.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uid": userID, "email": GetEmail(c)})
}

// CSRFToken returns the token cookie-authenticated clients must echo in
// the X-CSRF-Token header.
func (ac *AuthController) CSRFToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"csrfToken": GetCSRFToken(c)})
}

func (ac *AuthController) startSession(c *gin.Context, user *entities.User, status int) {
	token, err := ac.service.GenerateToken(user.ID)
	if err != nil {
		log.Printf("[AUTH] Failed to issue token for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if ac.sessionManager != nil {
		err := ac.sessionManager.CreateSession(c.Request, user)
		if err != nil && !errors.Is(err, errSessionNotLoaded) {
			log.Printf("[AUTH] Failed to create session for %s: %v", user.ID, err)
		}
	}

	c.JSON(status, SessionResponse{UID: user.ID, Email: user.Email, Token: token})
}

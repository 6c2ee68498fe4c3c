// Package auth is the server side of the identity API: accounts with bcrypt
// passwords, API tokens, cookie sessions and the gin middleware that
// authenticates requests to the books API.
//
// Clients authenticate with a bearer token returned by sign-up or sign-in.
// Only a SHA-256 hash of the token is stored, and signing in again replaces
// it. Browsers may instead use the session cookie set by the same calls; cookie
// requests that mutate state must echo the CSRF token from GET /api/auth/csrf.
// Bearer requests that carry no cookie never touch the session store.
//
// Failed sign-ins lock out the client IP and email pair for a while, and each
// client IP may only attempt a handful of sign-ups per hour.
//
// # Configuration
//
//	AUTH_SESSION_LIFETIME=24h              # Session duration
//	AUTH_TOKEN_EXPIRY=720h                 # API token expiry (30 days default)
//	AUTH_BCRYPT_COST=12                    # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true               # HTTPS-only cookies
//	AUTH_MAX_LOGIN_ATTEMPTS=5              # Failed sign-ins before lockout
//	AUTH_MAX_SIGNUPS=10                    # Sign-up attempts per IP per window
//	AUTH_SIGNUP_WINDOW=1h                  # Window for counting sign-ups
//
// # Usage
//
//	authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)
//	authMiddleware := auth.NewMiddleware(authService, sessionManager)
//	router.Use(sessionManager.SessionLoadSave(), authMiddleware.Handler())
//
// Extract the user in handlers:
//
//	userID := auth.GetUserID(c)
package auth

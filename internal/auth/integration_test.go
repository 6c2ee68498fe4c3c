package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/spinestock/internal/config"
	"github.com/mrlokans/spinestock/internal/database/users"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db := setupTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get SQL DB: %v", err)
	}

	cfg := config.Auth{
		SessionLifetime:  24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		SecureCookies:    false,
		MaxLoginAttempts: 3,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	}

	svc := NewService(users.NewRepository(db), cfg)
	sm, err := NewSessionManager(sqlDB, cfg)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	middleware := NewMiddleware(svc, sm)
	controller := NewAuthController(svc, sm, cfg)
	t.Cleanup(controller.Stop)

	router := gin.New()
	router.Use(sm.SessionLoadSave())
	router.Use(middleware.Handler())
	controller.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/users/:uid/books", middleware.RequireOwner("uid"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": GetUserID(c), "via": GetAuthType(c)})
	})

	return router
}

func doJSON(router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return resp.Error
}

func TestIntegration_SignUpSignInSignOut(t *testing.T) {
	router := setupTestRouter(t)
	creds := Credentials{Email: "reader@example.com", Password: "bookworm"}

	rr := doJSON(router, http.MethodPost, "/api/auth/signup", "", creds)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	signup := decodeSession(t, rr)
	if signup.UID == "" || signup.Token == "" || signup.Email != "reader@example.com" {
		t.Fatalf("signup: unexpected response %+v", signup)
	}

	rr = doJSON(router, http.MethodPost, "/api/auth/signin", "", creds)
	if rr.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	signin := decodeSession(t, rr)
	if signin.UID != signup.UID {
		t.Errorf("signin: uid = %s, want %s", signin.UID, signup.UID)
	}

	rr = doJSON(router, http.MethodGet, "/api/users/"+signin.UID+"/books", signin.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("books: expected 200, got %d", rr.Code)
	}

	rr = doJSON(router, http.MethodPost, "/api/auth/signout", signin.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("signout: expected 200, got %d", rr.Code)
	}

	rr = doJSON(router, http.MethodGet, "/api/users/"+signin.UID+"/books", signin.Token, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("after signout: expected 401, got %d", rr.Code)
	}
}

func TestIntegration_SignUpErrors(t *testing.T) {
	router := setupTestRouter(t)

	rr := doJSON(router, http.MethodPost, "/api/auth/signup", "", Credentials{Email: "reader@example.com", Password: "12345"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("short password: expected 400, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != ErrPasswordTooShort.Error() {
		t.Errorf("short password: message = %q", msg)
	}

	creds := Credentials{Email: "reader@example.com", Password: "bookworm"}
	if rr := doJSON(router, http.MethodPost, "/api/auth/signup", "", creds); rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", rr.Code)
	}
	rr = doJSON(router, http.MethodPost, "/api/auth/signup", "", creds)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != ErrUserExists.Error() {
		t.Errorf("duplicate: message = %q", msg)
	}
}

func TestIntegration_SignInWrongPassword(t *testing.T) {
	router := setupTestRouter(t)
	doJSON(router, http.MethodPost, "/api/auth/signup", "", Credentials{Email: "reader@example.com", Password: "bookworm"})

	rr := doJSON(router, http.MethodPost, "/api/auth/signin", "", Credentials{Email: "reader@example.com", Password: "nope-nope"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "invalid email or password" {
		t.Errorf("message = %q", msg)
	}
}

func TestIntegration_SignInRateLimited(t *testing.T) {
	router := setupTestRouter(t)
	creds := Credentials{Email: "ghost@example.com", Password: "whatever"}

	for i := 0; i < 3; i++ {
		doJSON(router, http.MethodPost, "/api/auth/signin", "", creds)
	}

	rr := doJSON(router, http.MethodPost, "/api/auth/signin", "", creds)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestIntegration_SignUpRateLimitedPerIP(t *testing.T) {
	router := setupTestRouter(t)
	limit := DefaultRateLimitConfig().MaxSignUps

	// Rejected attempts count too
	for i := 0; i < limit; i++ {
		rr := doJSON(router, http.MethodPost, "/api/auth/signup", "", Credentials{Email: "reader@example.com", Password: "12345"})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: expected 400, got %d", i+1, rr.Code)
		}
	}

	rr := doJSON(router, http.MethodPost, "/api/auth/signup", "", Credentials{Email: "reader@example.com", Password: "bookworm"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rr.Code, rr.Body.String())
	}
	if seconds, err := strconv.Atoi(rr.Header().Get("Retry-After")); err != nil || seconds <= 0 {
		t.Errorf("Retry-After = %q, want positive seconds", rr.Header().Get("Retry-After"))
	}

	// Sign-ins are throttled separately
	rr = doJSON(router, http.MethodPost, "/api/auth/signin", "", Credentials{Email: "reader@example.com", Password: "bookworm"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("signin: expected 401, got %d", rr.Code)
	}
}

func TestIntegration_SignInGuardRejectsMalformedBody(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestIntegration_SuccessfulSignInClearsFailures(t *testing.T) {
	router := setupTestRouter(t)
	doJSON(router, http.MethodPost, "/api/auth/signup", "", Credentials{Email: "reader@example.com", Password: "bookworm"})

	for round := 0; round < 2; round++ {
		for i := 0; i < 2; i++ {
			doJSON(router, http.MethodPost, "/api/auth/signin", "", Credentials{Email: "reader@example.com", Password: "wrong-one"})
		}
		rr := doJSON(router, http.MethodPost, "/api/auth/signin", "", Credentials{Email: "reader@example.com", Password: "bookworm"})
		if rr.Code != http.StatusOK {
			t.Fatalf("round %d: expected 200, got %d", round+1, rr.Code)
		}
	}
}

func TestIntegration_BearerRequestsSkipCookieSession(t *testing.T) {
	router := setupTestRouter(t)
	user := decodeSession(t, doJSON(router, http.MethodPost, "/api/auth/signup", "", Credentials{Email: "reader@example.com", Password: "bookworm"}))

	rr := doJSON(router, http.MethodGet, "/api/users/"+user.UID+"/books", user.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("books: expected 200, got %d", rr.Code)
	}

	rr = doJSON(router, http.MethodPost, "/api/auth/signout", user.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("signout: expected 200, got %d", rr.Code)
	}
	if cookies := rr.Result().Cookies(); len(cookies) != 0 {
		t.Errorf("expected no cookies for a bearer request, got %v", cookies)
	}
}

func TestIntegration_OtherUsersCollectionIsForbidden(t *testing.T) {
	router := setupTestRouter(t)

	alice := decodeSession(t, doJSON(router, http.MethodPost, "/api/auth/signup", "", Credentials{Email: "alice@example.com", Password: "bookworm"}))
	bob := decodeSession(t, doJSON(router, http.MethodPost, "/api/auth/signup", "", Credentials{Email: "bob@example.com", Password: "bookworm"}))

	rr := doJSON(router, http.MethodGet, "/api/users/"+bob.UID+"/books", alice.Token, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
}

func TestIntegration_PublicAndProtectedRoutes(t *testing.T) {
	router := setupTestRouter(t)

	if rr := doJSON(router, http.MethodGet, "/health", "", nil); rr.Code != http.StatusOK {
		t.Errorf("/health: expected 200, got %d", rr.Code)
	}
	if rr := doJSON(router, http.MethodGet, "/api/auth/me", "", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("/api/auth/me: expected 401, got %d", rr.Code)
	}
	if rr := doJSON(router, http.MethodGet, "/api/users/u1/books", "malformed", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rr.Code)
	}
}

func TestIntegration_SessionCookie(t *testing.T) {
	router := setupTestRouter(t)

	rr := doJSON(router, http.MethodPost, "/api/auth/signup", "", Credentials{Email: "reader@example.com", Password: "bookworm"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", rr.Code)
	}
	user := decodeSession(t, rr)

	var sessionCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "spinestock_session" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected a session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(sessionCookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rr.Code)
	}
	var me map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &me)
	if me["uid"] != user.UID || me["email"] != "reader@example.com" {
		t.Errorf("me: unexpected response %v", me)
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/spinestock/internal/config"
)

func TestRateLimiter_AllowsInitialAttempts(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     3,
		WindowDuration:  time.Minute,
		LockoutDuration: time.Minute,
	})
	defer rl.Stop()

	ip := "192.168.1.1"
	email := "reader@example.com"

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow(ip, email)
		if !allowed {
			t.Errorf("Attempt %d should be allowed", i+1)
		}
		rl.RecordFailure(ip, email)
	}

	allowed, retryAfter := rl.Allow(ip, email)
	if allowed {
		t.Error("Fourth attempt should be blocked")
	}
	if retryAfter <= 0 {
		t.Error("RetryAfter should be positive when blocked")
	}
}

func TestRateLimiter_SuccessResetsCounter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxAttempts: 3})
	defer rl.Stop()

	ip := "192.168.1.1"
	email := "reader@example.com"

	rl.RecordFailure(ip, email)
	rl.RecordFailure(ip, email)
	rl.RecordSuccess(ip, email)

	rl.RecordFailure(ip, email)
	rl.RecordFailure(ip, email)
	if allowed, _ := rl.Allow(ip, email); !allowed {
		t.Error("Counter should have been reset by the successful sign-in")
	}
}

func TestRateLimiter_EmailIsCaseInsensitive(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxAttempts: 2})
	defer rl.Stop()

	rl.RecordFailure("10.0.0.1", "Reader@Example.com")
	rl.RecordFailure("10.0.0.1", "reader@example.com ")

	if allowed, _ := rl.Allow("10.0.0.1", "READER@EXAMPLE.COM"); allowed {
		t.Error("Attempts with differently cased emails should share a counter")
	}
}

func TestRateLimiter_DifferentClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxAttempts: 1})
	defer rl.Stop()

	rl.RecordFailure("10.0.0.1", "reader@example.com")

	if allowed, _ := rl.Allow("10.0.0.2", "reader@example.com"); !allowed {
		t.Error("Another IP should not be affected")
	}
	if allowed, _ := rl.Allow("10.0.0.1", "other@example.com"); !allowed {
		t.Error("Another email should not be affected")
	}
}

func TestRateLimiter_SignUpsAreCountedPerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxSignUps: 2, SignUpWindow: time.Hour})
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		if allowed, _ := rl.TakeSignUp("10.0.0.1"); !allowed {
			t.Fatalf("sign-up %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := rl.TakeSignUp("10.0.0.1")
	if allowed {
		t.Error("third sign-up from the same IP should be blocked")
	}
	if retryAfter <= 0 || retryAfter > time.Hour {
		t.Errorf("retryAfter = %v, want the rest of the window", retryAfter)
	}
	if allowed, _ := rl.TakeSignUp("10.0.0.2"); !allowed {
		t.Error("another IP should not be affected")
	}
}

func TestRateLimitConfigFor_FallsBackToDefaults(t *testing.T) {
	got := RateLimitConfigFor(config.Auth{MaxLoginAttempts: 3})
	want := DefaultRateLimitConfig()
	want.MaxAttempts = 3

	if got != want {
		t.Errorf("RateLimitConfigFor() = %+v, want %+v", got, want)
	}
}

func TestAttemptWindow_SweepDropsExpiredRecords(t *testing.T) {
	w := newAttemptWindow(3, time.Minute, time.Minute)
	start := time.Now()

	w.hit("stale", start)
	w.hit("fresh", start.Add(2*time.Minute))
	w.sweep(start.Add(2 * time.Minute))

	if n := w.size(); n != 1 {
		t.Errorf("expected 1 record after sweep, got %d", n)
	}
	if allowed, _ := w.check("fresh", start.Add(2*time.Minute)); !allowed {
		t.Error("a key under its limit should be allowed")
	}
}

func TestAttemptWindow_LockoutExpires(t *testing.T) {
	w := newAttemptWindow(2, time.Hour, time.Minute)
	start := time.Now()

	w.hit("k", start)
	if locked, lockout := w.hit("k", start); !locked || lockout != time.Minute {
		t.Fatalf("second hit: locked=%v lockout=%v", locked, lockout)
	}
	if allowed, _ := w.check("k", start.Add(30*time.Second)); allowed {
		t.Error("should be locked during the lockout")
	}
	if allowed, _ := w.check("k", start.Add(time.Minute)); !allowed {
		t.Error("should be allowed once the lockout ends")
	}
	if locked, _ := w.hit("k", start.Add(time.Minute)); locked {
		t.Error("a hit after the lockout starts a fresh count")
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	rl.Stop()
	rl.Stop()
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/api/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	expected := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	}
	for header, want := range expected {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestHSTSHeader(t *testing.T) {
	router := gin.New()
	router.Use(StrictTransportSecurityMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be set for plain HTTP")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS should be set behind an HTTPS proxy")
	}
}

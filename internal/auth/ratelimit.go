package auth

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/mrlokans/spinestock/internal/config"
)

// RateLimiter throttles the identity endpoints. Failed sign-ins are counted
// per client IP and email, and lock that pair out once they reach the limit.
// Sign-ups are counted per client IP whatever their outcome, so a single
// client cannot mass-create accounts.
type RateLimiter struct {
	signIn *attemptWindow
	signUp *attemptWindow

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// RateLimitConfig contains configuration for the rate limiter. Zero fields
// take their value from DefaultRateLimitConfig.
type RateLimitConfig struct {
	MaxAttempts     int           // Failed sign-ins before lockout
	WindowDuration  time.Duration // Window failed sign-ins are counted over
	LockoutDuration time.Duration // How long a locked pair waits
	MaxSignUps      int           // Sign-up attempts per IP per SignUpWindow
	SignUpWindow    time.Duration
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the limits used for anything left unset.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
		MaxSignUps:      10,
		SignUpWindow:    time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimitConfigFor maps the server's auth settings onto a RateLimitConfig.
func RateLimitConfigFor(cfg config.Auth) RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     cfg.MaxLoginAttempts,
		WindowDuration:  cfg.RateLimitWindow,
		LockoutDuration: cfg.LockoutDuration,
		MaxSignUps:      cfg.MaxSignUps,
		SignUpWindow:    cfg.SignUpWindow,
	}.withDefaults()
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	d := DefaultRateLimitConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = d.WindowDuration
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = d.LockoutDuration
	}
	if c.MaxSignUps <= 0 {
		c.MaxSignUps = d.MaxSignUps
	}
	if c.SignUpWindow <= 0 {
		c.SignUpWindow = d.SignUpWindow
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	return c
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg = cfg.withDefaults()

	rl := &RateLimiter{
		signIn:          newAttemptWindow(cfg.MaxAttempts, cfg.WindowDuration, cfg.LockoutDuration),
		signUp:          newAttemptWindow(cfg.MaxSignUps, cfg.SignUpWindow, 0),
		cleanupInterval: cfg.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop stops the background cleanup goroutine. It is safe to call twice.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// signInKey pairs the client IP with the email, compared case-insensitively.
func signInKey(ip, email string) string {
	return ip + ":" + strings.ToLower(strings.TrimSpace(email))
}

// Allow reports whether a sign-in for email from ip may proceed, and if
// not, how long until it may.
func (rl *RateLimiter) Allow(ip, email string) (bool, time.Duration) {
	return rl.signIn.check(signInKey(ip, email), time.Now())
}

// RecordFailure counts a failed sign-in. It reports whether the pair is now
// locked out and for how long.
func (rl *RateLimiter) RecordFailure(ip, email string) (bool, time.Duration) {
	return rl.signIn.hit(signInKey(ip, email), time.Now())
}

// RecordSuccess clears the failures of a pair that has signed in.
func (rl *RateLimiter) RecordSuccess(ip, email string) {
	rl.signIn.reset(signInKey(ip, email))
}

// TakeSignUp counts a sign-up attempt from ip unless the IP is already over
// its limit, in which case it reports how long until the window resets.
func (rl *RateLimiter) TakeSignUp(ip string) (bool, time.Duration) {
	return rl.signUp.take(ip, time.Now())
}

// SignInGuard rejects sign-ins from a locked-out IP and email pair and
// records the outcome of the ones it lets through. The email is read from
// the JSON body, which stays available to the handler.
func (rl *RateLimiter) SignInGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindBodyWith(&creds, binding.JSON); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		ip := c.ClientIP()

		if allowed, retryAfter := rl.Allow(ip, creds.Email); !allowed {
			tooManyRequests(c, "too many sign-in attempts, try again later", retryAfter)
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusOK:
			rl.RecordSuccess(ip, creds.Email)
		case http.StatusUnauthorized, http.StatusForbidden:
			rl.RecordFailure(ip, creds.Email)
		}
	}
}

// SignUpGuard limits how many accounts one client IP may try to create.
func (rl *RateLimiter) SignUpGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowed, retryAfter := rl.TakeSignUp(c.ClientIP()); !allowed {
			tooManyRequests(c, "too many sign-up attempts, try again later", retryAfter)
			return
		}
		c.Next()
	}
}

// tooManyRequests aborts with 429 and a Retry-After in whole seconds.
func tooManyRequests(c *gin.Context, message string, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       message,
		"retry_after": seconds,
	})
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.signIn.sweep(now)
			rl.signUp.sweep(now)
		case <-rl.stopCleanup:
			return
		}
	}
}

// attemptWindow counts attempts per key over a fixed window. Reaching the
// limit locks the key for lockout, or until the window ends when lockout
// is zero.
type attemptWindow struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
	limit    int
	window   time.Duration
	lockout  time.Duration
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

func newAttemptWindow(limit int, window, lockout time.Duration) *attemptWindow {
	return &attemptWindow{
		attempts: make(map[string]*attemptRecord),
		limit:    limit,
		window:   window,
		lockout:  lockout,
	}
}

// expired reports whether r no longer counts: the lockout it triggered is
// over or, without one, its window has passed.
func (r *attemptRecord) expired(now time.Time, window time.Duration) bool {
	if !r.lockedUntil.IsZero() {
		return !now.Before(r.lockedUntil)
	}
	return now.Sub(r.firstAttempt) > window
}

func (w *attemptWindow) check(key string, now time.Time) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checkLocked(key, now)
}

func (w *attemptWindow) checkLocked(key string, now time.Time) (bool, time.Duration) {
	record, ok := w.attempts[key]
	if !ok || record.expired(now, w.window) {
		return true, 0
	}
	if now.Before(record.lockedUntil) {
		return false, record.lockedUntil.Sub(now)
	}
	return true, 0
}

func (w *attemptWindow) hit(key string, now time.Time) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hitLocked(key, now)
}

func (w *attemptWindow) hitLocked(key string, now time.Time) (bool, time.Duration) {
	record, ok := w.attempts[key]
	if !ok || record.expired(now, w.window) {
		record = &attemptRecord{firstAttempt: now}
		w.attempts[key] = record
	}

	record.count++
	if record.count < w.limit {
		return false, 0
	}

	lockout := w.lockout
	if lockout <= 0 {
		lockout = record.firstAttempt.Add(w.window).Sub(now)
	}
	record.lockedUntil = now.Add(lockout)
	return true, lockout
}

// take checks and counts in one step.
func (w *attemptWindow) take(key string, now time.Time) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if allowed, retryAfter := w.checkLocked(key, now); !allowed {
		return false, retryAfter
	}
	w.hitLocked(key, now)
	return true, 0
}

func (w *attemptWindow) reset(key string) {
	w.mu.Lock()
	delete(w.attempts, key)
	w.mu.Unlock()
}

func (w *attemptWindow) sweep(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, record := range w.attempts {
		if record.expired(now, w.window) {
			delete(w.attempts, key)
		}
	}
}

func (w *attemptWindow) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.attempts)
}

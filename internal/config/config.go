package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Tasks
		Enrichment
		Lookup
		Audit
		Client
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Auth struct {
		SessionSecret   string
		SessionLifetime time.Duration
		TokenExpiry     time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
		MaxSignUps       int           // Sign-up attempts per client IP (default: 10)
		SignUpWindow     time.Duration // Window for counting sign-ups (default: 1h)
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Enrichment struct {
		SweepEnabled  bool
		SweepSchedule string // Cron format: "0 * * * *" = hourly
		SweepLimit    int    // Max books enriched per sweep
		Concurrency   int
	}
	Lookup struct {
		BaseURL     string
		CoversURL   string
		Timeout     time.Duration
		MinInterval time.Duration // Minimum spacing between catalog requests, 0 disables
		UserAgent   string
	}
	Audit struct {
		Enabled       bool
		Retention     time.Duration // Events older than this are pruned
		PruneSchedule string        // Cron format: "30 3 * * *" = daily at 03:30
	}
	Client struct {
		ServerURL      string
		Email          string
		Password       string
		CommandTimeout time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8189)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Auth defaults
	v.SetDefault("auth_session_secret", "")       // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")  // 24 hours
	v.SetDefault("auth_token_expiry", "720h")     // 30 days
	v.SetDefault("auth_bcrypt_cost", 12)          // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)     // HTTPS-only cookies
	v.SetDefault("auth_max_login_attempts", 5)    // Max failed attempts
	v.SetDefault("auth_rate_limit_window", "15m") // Window for counting attempts
	v.SetDefault("auth_lockout_duration", "30m")  // Lockout duration
	v.SetDefault("auth_max_signups", 10)          // Sign-ups per client IP
	v.SetDefault("auth_signup_window", "1h")      // Window for counting sign-ups

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Enrichment sweep defaults
	v.SetDefault("enrich_sweep_enabled", true)
	v.SetDefault("enrich_sweep_schedule", "0 * * * *") // Hourly at :00
	v.SetDefault("enrich_sweep_limit", 50)
	v.SetDefault("enrich_concurrency", 2)

	// OpenLibrary defaults
	v.SetDefault("lookup_base_url", DefaultLookupBaseURL)
	v.SetDefault("lookup_covers_url", DefaultCoversBaseURL)
	v.SetDefault("lookup_timeout", "10s")
	v.SetDefault("lookup_min_interval", "250ms")
	v.SetDefault("lookup_user_agent", DefaultUserAgent)

	// Activity log defaults
	v.SetDefault("audit_enabled", true)
	v.SetDefault("audit_retention", "2160h") // 90 days
	v.SetDefault("audit_prune_schedule", "30 3 * * *")

	// CLI client defaults
	v.SetDefault("spinestock_server_url", "http://localhost:8189")
	v.SetDefault("spinestock_email", "")
	v.SetDefault("spinestock_password", "")
	v.SetDefault("spinestock_command_timeout", "30s")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Auth: Auth{
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenExpiry:      v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
			MaxSignUps:       v.GetInt("AUTH_MAX_SIGNUPS"),
			SignUpWindow:     v.GetDuration("AUTH_SIGNUP_WINDOW"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Enrichment: Enrichment{
			SweepEnabled:  v.GetBool("ENRICH_SWEEP_ENABLED"),
			SweepSchedule: v.GetString("ENRICH_SWEEP_SCHEDULE"),
			SweepLimit:    v.GetInt("ENRICH_SWEEP_LIMIT"),
			Concurrency:   v.GetInt("ENRICH_CONCURRENCY"),
		},
		Lookup: Lookup{
			BaseURL:     v.GetString("LOOKUP_BASE_URL"),
			CoversURL:   v.GetString("LOOKUP_COVERS_URL"),
			Timeout:     v.GetDuration("LOOKUP_TIMEOUT"),
			MinInterval: v.GetDuration("LOOKUP_MIN_INTERVAL"),
			UserAgent:   v.GetString("LOOKUP_USER_AGENT"),
		},
		Audit: Audit{
			Enabled:       v.GetBool("AUDIT_ENABLED"),
			Retention:     v.GetDuration("AUDIT_RETENTION"),
			PruneSchedule: v.GetString("AUDIT_PRUNE_SCHEDULE"),
		},
		Client: Client{
			ServerURL:      v.GetString("SPINESTOCK_SERVER_URL"),
			Email:          v.GetString("SPINESTOCK_EMAIL"),
			Password:       v.GetString("SPINESTOCK_PASSWORD"),
			CommandTimeout: v.GetDuration("SPINESTOCK_COMMAND_TIMEOUT"),
		},
	}
}

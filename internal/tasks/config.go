package tasks

import (
	"time"

	"github.com/mrlokans/spinestock/internal/config"
)

// Config tunes the queue.
type Config struct {
	// Workers is the number of tasks processed at once.
	Workers int

	// ReleaseAfter returns a task stuck in a dead worker to the queue.
	ReleaseAfter time.Duration

	// CleanupInterval is how often expired task records are removed.
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    15 * time.Minute,
		CleanupInterval: time.Hour,
	}
}

// ConfigFrom maps the server's task settings, falling back to defaults for
// zero values.
func ConfigFrom(cfg config.Tasks) Config {
	out := DefaultConfig()
	if cfg.Workers > 0 {
		out.Workers = cfg.Workers
	}
	if cfg.ReleaseAfter > 0 {
		out.ReleaseAfter = cfg.ReleaseAfter
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = cfg.CleanupInterval
	}
	return out
}

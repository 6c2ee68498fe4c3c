package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// EnrichMissingTask sweeps stored books that have an ISBN but no
// description. The scheduler enqueues it periodically.
type EnrichMissingTask struct {
	// Limit caps the number of books per sweep, 0 means all.
	Limit int `json:"limit,omitempty"`
}

func (t EnrichMissingTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "enrich_missing",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// EnrichMissingProcessor returns the queue processor for EnrichMissingTask.
func EnrichMissingProcessor(enricher *Enricher) backlite.QueueProcessor[EnrichMissingTask] {
	return func(ctx context.Context, task EnrichMissingTask) error {
		if enricher == nil {
			return errors.New("enricher not configured")
		}

		result, err := enricher.EnrichMissing(ctx, task.Limit)
		if err != nil {
			return fmt.Errorf("enrich missing: %w", err)
		}

		log.Printf("[TASK] Enrichment sweep complete: %d total, %d enriched, %d skipped, %d failed",
			result.Total, result.Enriched, result.Skipped, result.Failed)
		return nil
	}
}

func NewEnrichMissingQueue(enricher *Enricher) backlite.Queue {
	return backlite.NewQueue(EnrichMissingProcessor(enricher))
}

package tasks

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// EnrichBookTask fills in details for one stored book. The server enqueues
// it after every create.
type EnrichBookTask struct {
	UserID string `json:"user_id"`
	BookID string `json:"book_id"`
}

func (t EnrichBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "enrich_book",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// EnrichBookProcessor returns the queue processor for EnrichBookTask.
func EnrichBookProcessor(enricher *Enricher) backlite.QueueProcessor[EnrichBookTask] {
	return func(ctx context.Context, task EnrichBookTask) error {
		if enricher == nil {
			return errors.New("enricher not configured")
		}

		written, err := enricher.EnrichBook(ctx, task.UserID, task.BookID)
		if err != nil {
			return err
		}
		if written {
			log.Printf("[TASK] Enriched book %s", task.BookID)
		} else {
			log.Printf("[TASK] Book %s: nothing new to save", task.BookID)
		}
		return nil
	}
}

func NewEnrichBookQueue(enricher *Enricher) backlite.Queue {
	return backlite.NewQueue(EnrichBookProcessor(enricher))
}

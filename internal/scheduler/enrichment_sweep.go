// Package scheduler runs periodic server jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/spinestock/internal/config"
	"github.com/mrlokans/spinestock/internal/tasks"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer queues background tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// EnrichmentSweepScheduler periodically enqueues an EnrichMissingTask.
type EnrichmentSweepScheduler struct {
	queue Enqueuer
	cfg   config.Enrichment

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func NewEnrichmentSweepScheduler(queue Enqueuer, cfg config.Enrichment) *EnrichmentSweepScheduler {
	return &EnrichmentSweepScheduler{
		queue: queue,
		cfg:   cfg,
		cron:  cron.New(cron.WithParser(cronParser)),
	}
}

// ValidateSchedule reports whether schedule is a five-field cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// Start schedules the sweep unless it is disabled. The scheduler stops
// when ctx is done.
func (s *EnrichmentSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.cfg.SweepEnabled {
		log.Printf("[SCHEDULER] Enrichment sweep disabled")
		return nil
	}
	if err := ValidateSchedule(s.cfg.SweepSchedule); err != nil {
		return err
	}

	entryID, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() {
		s.RunNow(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule enrichment sweep: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true
	log.Printf("[SCHEDULER] Enrichment sweep scheduled with '%s'. Next run: %v",
		s.cfg.SweepSchedule, s.cron.Entry(entryID).Next)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running enqueue and stops the schedule.
func (s *EnrichmentSweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.isRunning = false
	log.Printf("[SCHEDULER] Enrichment sweep stopped")
}

// RunNow enqueues a sweep immediately and returns the task id.
func (s *EnrichmentSweepScheduler) RunNow(ctx context.Context) (string, error) {
	id, err := s.queue.Enqueue(ctx, tasks.EnrichMissingTask{Limit: s.cfg.SweepLimit})
	if err != nil {
		log.Printf("[SCHEDULER] Failed to enqueue enrichment sweep: %v", err)
		return "", err
	}
	log.Printf("[SCHEDULER] Enqueued enrichment sweep %s", id)
	return id, nil
}

func (s *EnrichmentSweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the next scheduled sweep, or nil when not running.
func (s *EnrichmentSweepScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/spinestock/internal/config"
	"github.com/mrlokans/spinestock/internal/tasks"
)

// AuditPruneScheduler periodically enqueues a CleanupAuditEventsTask.
type AuditPruneScheduler struct {
	queue Enqueuer
	cfg   config.Audit

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

func NewAuditPruneScheduler(queue Enqueuer, cfg config.Audit) *AuditPruneScheduler {
	return &AuditPruneScheduler{
		queue: queue,
		cfg:   cfg,
		cron:  cron.New(cron.WithParser(cronParser)),
	}
}

// Start schedules pruning unless auditing is off or retention is unset.
func (s *AuditPruneScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.cfg.Enabled || s.cfg.Retention <= 0 {
		log.Printf("[SCHEDULER] Activity log pruning disabled")
		return nil
	}
	if err := ValidateSchedule(s.cfg.PruneSchedule); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.cfg.PruneSchedule, func() {
		s.RunNow(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule activity pruning: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("[SCHEDULER] Activity log pruning scheduled with '%s', keeping %v", s.cfg.PruneSchedule, s.cfg.Retention)
	return nil
}

func (s *AuditPruneScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
}

// RunNow enqueues a cleanup immediately and returns the task id.
func (s *AuditPruneScheduler) RunNow(ctx context.Context) (string, error) {
	id, err := s.queue.Enqueue(ctx, tasks.CleanupAuditEventsTask{Retention: s.cfg.Retention})
	if err != nil {
		log.Printf("[SCHEDULER] Failed to enqueue activity log cleanup: %v", err)
		return "", err
	}
	return id, nil
}

func (s *AuditPruneScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

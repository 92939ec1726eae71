package worker

import (
	"context"
	"fmt"
	"time"

	"finanzas/internal/log"

	"github.com/robfig/cron/v3"
)

// SessionPruner deletes sessions past their expiry.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler runs the periodic maintenance jobs of the worker: the pending
// sync sweep and expired session cleanup.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger *log.Logger
}

// NewScheduler creates a seconds-resolution scheduler. Jobs receive ctx and
// overlapping runs of the same job are skipped.
func NewScheduler(ctx context.Context, loc *time.Location, logger *log.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Discard()
	}
	l := logger.WithComponent(log.ComponentScheduler)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		logger: l,
	}
}

// Every registers job to run at the given interval.
func (s *Scheduler) Every(name string, interval time.Duration, job func(context.Context) error) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("schedule %s: interval must be positive", name)
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), s.wrap(name, job))
}

func (s *Scheduler) wrap(name string, job func(context.Context) error) func() {
	return func() {
		if s.ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.ErrorContext(s.ctx, "Scheduled job failed", "job", name, log.FieldError, err)
			return
		}
		s.logger.DebugContext(s.ctx, "Scheduled job finished", "job", name,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// SweepJob adapts the pending sync sweep to a scheduler job.
func SweepJob(w *SyncWorker) func(context.Context) error {
	return func(ctx context.Context) error {
		_, _, err := w.ProcessPending(ctx)
		return err
	}
}

// PruneSessionsJob deletes expired sessions on each run.
func PruneSessionsJob(p SessionPruner, logger *log.Logger) func(context.Context) error {
	if logger == nil {
		logger = log.Discard()
	}
	return func(ctx context.Context) error {
		n, err := p.DeleteExpiredSessions(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
		if n > 0 {
			logger.InfoContext(ctx, "Pruned expired sessions", "count", n)
		}
		return nil
	}
}

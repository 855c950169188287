package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NextMidnight returns the first local midnight strictly after t.
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// Scheduler fires the runner once a day at local midnight. A failed run is
// logged and the loop waits for the next tick.
type Scheduler struct {
	run   Runner
	log   *slog.Logger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewScheduler(run Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{run: run, log: logger, now: time.Now, after: time.After}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("schedule.stopped")
			return err
		}
		next := NextMidnight(s.now())
		wait := next.Sub(s.now())
		s.log.Info("schedule.waiting", "next_run", next.Format(time.RFC3339), "wait", wait.String())

		select {
		case <-ctx.Done():
			s.log.Info("schedule.stopped")
			return ctx.Err()
		case <-s.after(wait):
		}
		s.tick(ctx)
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	runID := uuid.NewString()
	start := s.now()
	report, err := s.run(ctx, runID)
	if err != nil {
		s.log.Error("schedule.run.failed", "run_id", runID, "error", err)
		return
	}
	s.log.Info("schedule.run.done", "run_id", runID, "stages", len(report.Stages),
		"elapsed_ms", s.now().Sub(start).Milliseconds())
}

package reminders

import (
	"context"
	"log/slog"
	"time"

	"guildhall/internal/middleware"

	"github.com/robfig/cron/v3"
)

const (
	// passTimeout bounds a scheduled pass.
	passTimeout = 10 * time.Minute

	// DefaultSchedule is used when the reminder_cron flag is on without REMINDER_SCHEDULE.
	DefaultSchedule = "0 9 * * *"
)

// Scheduler runs reminder passes in-process on a cron schedule. Overlapping
// runs are skipped rather than queued.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
}

// NewScheduler registers runner on spec, a standard five-field cron expression
// or a descriptor such as "@daily".
func NewScheduler(spec string, runner *Runner) (*Scheduler, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	s := &Scheduler{cron: c, runner: runner}
	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()
	if _, err := s.runner.RunPass(ctx); err != nil {
		middleware.Logger.Error("scheduled reminder pass failed", slog.String("error", err.Error()))
	}
}

// Start begins running passes in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	middleware.Logger.Info("reminder scheduler started", slog.Int("entries", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for a running pass to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next reports when the next pass is due.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

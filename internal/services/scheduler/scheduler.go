// Package scheduler runs the curation pipeline on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// runTimeout bounds a single scheduled run so a hung provider call cannot
// stall the schedule indefinitely.
const runTimeout = 30 * time.Minute

// Runner is the pipeline entry point the scheduler invokes.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler triggers pipeline runs on a cron expression.
type Scheduler struct {
	runner Runner
	cron   *cron.Cron
	logger arbor.ILogger
}

// NewScheduler creates a scheduler over the runner.
func NewScheduler(runner Runner, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		runner: runner,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

// Start registers the schedule and begins ticking. An empty schedule defaults
// to 8am daily.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = "0 0 8 * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runOnce()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Curation scheduler started")

	return nil
}

// Stop stops the scheduler. Runs already in flight finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Curation scheduler stopped")
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	s.logger.Info().Msg("Starting scheduled curation run")

	if err := s.runner.Run(ctx); err != nil {
		s.logger.Error().
			Err(err).
			Msg("Scheduled curation run failed")
		return
	}

	s.logger.Info().Msg("Scheduled curation run completed")
}

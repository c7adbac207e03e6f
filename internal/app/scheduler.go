/**
 * @description
 * Cron scheduler setup for the AutoPay jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// SchedulerConfig carries the cron expressions for the AutoPay jobs.
type SchedulerConfig struct {
	DailyChargeSchedule string
	RetrySchedule       string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config SchedulerConfig
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg SchedulerConfig) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.DailyChargeSchedule, s.jobs.RunDailyCharges); err != nil {
		s.logger.Error("failed to schedule daily autopay charge job", "error", err)
	} else {
		s.logger.Info("scheduled daily autopay charge job", "schedule", s.config.DailyChargeSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.RetrySchedule, s.jobs.RunRetries); err != nil {
		s.logger.Error("failed to schedule autopay retry job", "error", err)
	} else {
		s.logger.Info("scheduled autopay retry job", "schedule", s.config.RetrySchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

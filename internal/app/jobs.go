/**
 * @description
 * Scheduled job implementations for recurring rent charges. The daily
 * charge job claims one run per (schedule, period) so a crashed or
 * re-triggered pass never double charges; the retry job walks the bounded
 * ladder for runs whose earlier attempts failed.
 */

package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
	"github.com/happytenant/payment-service/internal/store"
	"github.com/happytenant/payment-service/pkg/rabbitmq"
)

// maxChargeAttempts bounds the retry ladder: one initial attempt plus
// three retries, spaced next-business-day, +3 days, +7 days.
const maxChargeAttempts = 4

// chargeAttemptTimeout bounds each provider round trip so a hung
// connection cannot hold a worker slot for the whole cron cycle.
const chargeAttemptTimeout = 60 * time.Second

// requeryDelay is how long to wait before replaying an attempt whose
// outcome at the processor is unknown. Kept well inside the processor's
// idempotency-key window so the replay dedupes against the original
// submission.
const requeryDelay = time.Hour

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	svc         *Service
	repo        store.Repository
	producer    rabbitmq.Publisher
	logger      *slog.Logger
	workerLimit int
}

// NewJobs creates a new Jobs runner.
func NewJobs(svc *Service, repo store.Repository, producer rabbitmq.Publisher, logger *slog.Logger, workerLimit int) *Jobs {
	if workerLimit <= 0 {
		workerLimit = 8
	}
	return &Jobs{
		svc:         svc,
		repo:        repo,
		producer:    producer,
		logger:      logger,
		workerLimit: workerLimit,
	}
}

// RunDailyCharges charges every enabled schedule due today that has not
// been claimed for the current period. Safe to re-trigger: the per-period
// claim makes the second pass a no-op for already-claimed schedules.
func (j *Jobs) RunDailyCharges() {
	j.logger.Info("starting daily autopay charge job")
	ctx := context.Background()
	now := time.Now().UTC()

	period := domain.Period(now)
	dueDay := now.Day()
	lastDay := dueDay == lastDayOfMonth(now)

	schedules, err := j.repo.FindDueSchedules(ctx, dueDay, lastDay, period)
	if err != nil {
		j.logger.Error("failed to find due schedules", "error", err)
		return
	}
	if len(schedules) == 0 {
		j.logger.Info("no autopay schedules due", "day", dueDay, "period", period)
		return
	}
	j.logger.Info("found due autopay schedules", "count", len(schedules), "period", period)

	// Bounded fan-out: each schedule charges independently, but the
	// processor call budget is capped.
	sem := make(chan struct{}, j.workerLimit)
	var wg sync.WaitGroup
	for i := range schedules {
		schedule := schedules[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			j.chargeSchedule(ctx, &schedule, period)
		}()
	}
	wg.Wait()

	j.logger.Info("daily autopay charge job finished", "period", period)
}

// RunRetries re-attempts runs whose scheduled retry time has arrived.
func (j *Jobs) RunRetries() {
	j.logger.Info("starting autopay retry job")
	ctx := context.Background()
	now := time.Now().UTC()

	runs, err := j.repo.FindRetryDueRuns(ctx, now)
	if err != nil {
		j.logger.Error("failed to find retry-due runs", "error", err)
		return
	}
	if len(runs) == 0 {
		j.logger.Info("no autopay retries due")
		return
	}
	j.logger.Info("found autopay retries due", "count", len(runs))

	for i := range runs {
		run := runs[i]
		schedule, err := j.repo.FindAutoPayScheduleByID(ctx, run.ScheduleID)
		if err != nil {
			j.logger.Error("failed to load schedule for retry", "run_id", run.ID, "error", err)
			continue
		}
		if !schedule.Enabled {
			// Disabled mid-ladder (tenant turned AutoPay off or the method
			// was detached); close the run out instead of charging.
			if err := j.repo.MarkAutoPayRunFailed(ctx, run.ID, run.AttemptCount, "schedule disabled"); err != nil {
				j.logger.Error("failed to close run for disabled schedule", "run_id", run.ID, "error", err)
			}
			continue
		}
		j.attemptCharge(ctx, schedule, &run)
	}

	j.logger.Info("autopay retry job finished")
}

// chargeSchedule claims the period's run then makes the first attempt.
func (j *Jobs) chargeSchedule(ctx context.Context, schedule *domain.AutoPaySchedule, period string) {
	run, claimed, err := j.repo.ClaimAutoPayRun(ctx, schedule.ID, period)
	if err != nil {
		j.logger.Error("failed to claim autopay run", "schedule_id", schedule.ID, "period", period, "error", err)
		return
	}
	if !claimed {
		j.logger.Info("autopay run already claimed", "schedule_id", schedule.ID, "period", period)
		return
	}
	j.attemptCharge(ctx, schedule, run)
}

// attemptCharge makes one charge attempt and advances the run's state.
func (j *Jobs) attemptCharge(ctx context.Context, schedule *domain.AutoPaySchedule, run *domain.AutoPayRun) {
	ctx, cancel := context.WithTimeout(ctx, chargeAttemptTimeout)
	defer cancel()

	payment, err := j.svc.ProcessScheduledCharge(ctx, schedule, run)
	attempts := run.AttemptCount + 1

	if err == nil {
		switch {
		case payment.Status == domain.PaymentStatusSucceeded:
			if markErr := j.repo.MarkAutoPayRunPaid(ctx, run.ID); markErr != nil {
				j.logger.Error("failed to mark run paid", "run_id", run.ID, "error", markErr)
			}
			j.logger.Info("autopay charge succeeded", "schedule_id", schedule.ID, "period", run.Period, "payment_id", payment.ID)
		case payment.Status.Terminal():
			j.scheduleRetryOrFail(ctx, schedule, run, attempts, payment.FailureMessage)
		default:
			// Bank debits come back processing; the webhook settles the
			// run when the payment clears.
			j.logger.Info("autopay charge submitted", "schedule_id", schedule.ID, "period", run.Period, "status", payment.Status)
		}
		return
	}

	var invalid *provider.InvalidPaymentMethodError
	if errors.As(err, &invalid) || errors.Is(err, ErrMethodNeedsReplacement) {
		// Retrying an unusable method is pointless: stop the ladder, turn
		// the schedule off, and tell the tenant to replace the method.
		j.logger.Warn("autopay method invalid, stopping schedule", "schedule_id", schedule.ID, "error", err)
		if markErr := j.repo.MarkAutoPayRunFailed(ctx, run.ID, attempts, err.Error()); markErr != nil {
			j.logger.Error("failed to mark run failed", "run_id", run.ID, "error", markErr)
		}
		if disableErr := j.repo.SetAutoPayEnabled(ctx, schedule.ID, false); disableErr != nil {
			j.logger.Error("failed to disable schedule", "schedule_id", schedule.ID, "error", disableErr)
		}
		j.publishAlert(ctx, schedule, run, attempts, "method_invalid", err.Error())
		return
	}

	var transient *provider.ProviderError
	if errors.As(err, &transient) {
		// The submission may or may not have landed at the processor.
		// Keep the attempt count unchanged so the next pass replays the
		// same idempotency key and resolves the original attempt instead
		// of creating a second charge.
		nextAt := time.Now().UTC().Add(requeryDelay)
		if markErr := j.repo.MarkAutoPayRunRetrying(ctx, run.ID, run.AttemptCount, nextAt, err.Error()); markErr != nil {
			j.logger.Error("failed to schedule requery", "run_id", run.ID, "error", markErr)
			return
		}
		j.logger.Warn("autopay charge outcome unknown, requery scheduled",
			"schedule_id", schedule.ID, "period", run.Period, "next_attempt_at", nextAt, "error", err)
		return
	}

	j.scheduleRetryOrFail(ctx, schedule, run, attempts, err.Error())
}

func (j *Jobs) scheduleRetryOrFail(ctx context.Context, schedule *domain.AutoPaySchedule, run *domain.AutoPayRun, attempts int, reason string) {
	if attempts >= maxChargeAttempts {
		j.logger.Warn("autopay retries exhausted", "schedule_id", schedule.ID, "period", run.Period, "attempts", attempts)
		if err := j.repo.MarkAutoPayRunFailed(ctx, run.ID, attempts, reason); err != nil {
			j.logger.Error("failed to mark run failed", "run_id", run.ID, "error", err)
		}
		j.publishAlert(ctx, schedule, run, attempts, "exhausted", reason)
		return
	}

	nextAt := nextAttemptTime(time.Now().UTC(), attempts)
	if err := j.repo.MarkAutoPayRunRetrying(ctx, run.ID, attempts, nextAt, reason); err != nil {
		j.logger.Error("failed to schedule retry", "run_id", run.ID, "error", err)
		return
	}
	j.logger.Info("autopay retry scheduled", "schedule_id", schedule.ID, "period", run.Period, "attempt", attempts, "next_attempt_at", nextAt)
	j.publishAlert(ctx, schedule, run, attempts, "retry_scheduled", reason)
}

func (j *Jobs) publishAlert(ctx context.Context, schedule *domain.AutoPaySchedule, run *domain.AutoPayRun, attempts int, kind, reason string) {
	alert := rabbitmq.AutoPayAlertEvent{
		ScheduleID:   schedule.ID,
		Period:       run.Period,
		AttemptCount: attempts,
		Kind:         kind,
		Reason:       reason,
		Timestamp:    time.Now().UTC(),
	}
	if err := j.producer.PublishAutoPayAlert(ctx, alert); err != nil {
		j.logger.Error("failed to publish autopay alert", "schedule_id", schedule.ID, "kind", kind, "error", err)
	}
}

// nextAttemptTime implements the retry ladder: the first retry lands on the
// next business day, the second three days out, the third seven.
func nextAttemptTime(now time.Time, attempts int) time.Time {
	switch attempts {
	case 1:
		return nextBusinessDay(now)
	case 2:
		return now.AddDate(0, 0, 3)
	default:
		return now.AddDate(0, 0, 7)
	}
}

func nextBusinessDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

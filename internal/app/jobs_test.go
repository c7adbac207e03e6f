package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
	"github.com/happytenant/payment-service/internal/store"
	"github.com/happytenant/payment-service/pkg/rabbitmq"
)

type jobsRepoStub struct {
	chargeRepoStub

	schedule *domain.AutoPaySchedule
	dueRuns  []domain.AutoPayRun

	claimedRun  *domain.AutoPayRun
	claimOK     bool
	claimCalled bool

	paidRunID     uuid.UUID
	failedRunID   uuid.UUID
	failedReason  string
	retryRunID    uuid.UUID
	retryAttempts int
	retryAt       time.Time
	disabledID    uuid.UUID
	disableCalled bool
}

func (s *jobsRepoStub) ClaimAutoPayRun(ctx context.Context, scheduleID uuid.UUID, period string) (*domain.AutoPayRun, bool, error) {
	s.claimCalled = true
	if !s.claimOK {
		return nil, false, nil
	}
	return s.claimedRun, true, nil
}

func (s *jobsRepoStub) FindAutoPayScheduleByID(ctx context.Context, scheduleID uuid.UUID) (*domain.AutoPaySchedule, error) {
	if s.schedule == nil {
		return nil, store.ErrScheduleNotFound
	}
	return s.schedule, nil
}

func (s *jobsRepoStub) FindRetryDueRuns(ctx context.Context, now time.Time) ([]domain.AutoPayRun, error) {
	return s.dueRuns, nil
}

func (s *jobsRepoStub) MarkAutoPayRunPaid(ctx context.Context, runID uuid.UUID) error {
	s.paidRunID = runID
	return nil
}

func (s *jobsRepoStub) MarkAutoPayRunFailed(ctx context.Context, runID uuid.UUID, attemptCount int, failure string) error {
	s.failedRunID = runID
	s.failedReason = failure
	return nil
}

func (s *jobsRepoStub) MarkAutoPayRunRetrying(ctx context.Context, runID uuid.UUID, attemptCount int, nextAttemptAt time.Time, failure string) error {
	s.retryRunID = runID
	s.retryAttempts = attemptCount
	s.retryAt = nextAttemptAt
	return nil
}

func (s *jobsRepoStub) SetAutoPayEnabled(ctx context.Context, scheduleID uuid.UUID, enabled bool) error {
	s.disabledID = scheduleID
	s.disableCalled = !enabled
	return nil
}

type alertRecorder struct {
	rabbitmq.Publisher

	alerts   []rabbitmq.AutoPayAlertEvent
	payments []rabbitmq.PaymentEvent
}

func (r *alertRecorder) PublishAutoPayAlert(ctx context.Context, event rabbitmq.AutoPayAlertEvent) error {
	r.alerts = append(r.alerts, event)
	return nil
}

func (r *alertRecorder) PublishPaymentEvent(ctx context.Context, event rabbitmq.PaymentEvent) error {
	r.payments = append(r.payments, event)
	return nil
}

func newJobsFixture() (*Jobs, *jobsRepoStub, *chargeProviderStub, *alertRecorder) {
	repo := &jobsRepoStub{
		chargeRepoStub: chargeRepoStub{
			customer: &domain.Customer{
				ID:                 uuid.New(),
				ProviderCustomerID: "cus_123",
			},
			method: &domain.PaymentMethod{
				ProviderPaymentMethodID: "pm_123",
			},
			account: &domain.ConnectedAccount{
				ProviderAccountID: "acct_123",
				ChargesEnabled:    true,
			},
		},
	}
	repo.schedule = &domain.AutoPaySchedule{
		ID:              uuid.New(),
		LeaseID:         uuid.New(),
		CustomerID:      repo.customer.ID,
		PaymentMethodID: "pm_123",
		DestinationID:   "acct_123",
		DayOfMonth:      1,
		RentAmount:      1800,
		Enabled:         true,
	}
	prov := &chargeProviderStub{
		result: &provider.PaymentResult{
			ProviderPaymentID: "pi_123",
			Status:            domain.PaymentStatusSucceeded,
		},
	}
	recorder := &alertRecorder{}
	svc := NewService(repo, prov, recorder, ServiceConfig{FeeMode: FeeModeLandlordAbsorbs})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobs := NewJobs(svc, repo, recorder, logger, 2)
	return jobs, repo, prov, recorder
}

func pendingRun(scheduleID uuid.UUID, attempts int) *domain.AutoPayRun {
	return &domain.AutoPayRun{
		ID:           uuid.New(),
		ScheduleID:   scheduleID,
		Period:       "2026-09",
		Status:       domain.AutoPayRunStatusPending,
		AttemptCount: attempts,
	}
}

func TestChargeSchedule_SkipsAlreadyClaimedRun(t *testing.T) {
	jobs, repo, prov, _ := newJobsFixture()
	repo.claimOK = false

	jobs.chargeSchedule(context.Background(), repo.schedule, "2026-09")
	if !repo.claimCalled {
		t.Fatal("expected a claim attempt")
	}
	if prov.createCalled {
		t.Fatal("an already-claimed run must not be charged again")
	}
}

func TestAttemptCharge_SucceededMarksRunPaid(t *testing.T) {
	jobs, repo, _, _ := newJobsFixture()
	run := pendingRun(repo.schedule.ID, 0)

	jobs.attemptCharge(context.Background(), repo.schedule, run)
	if repo.paidRunID != run.ID {
		t.Fatal("expected the run to be marked paid")
	}
}

func TestAttemptCharge_ProcessingLeavesRunPending(t *testing.T) {
	jobs, repo, prov, _ := newJobsFixture()
	prov.result.Status = domain.PaymentStatusProcessing
	run := pendingRun(repo.schedule.ID, 0)

	jobs.attemptCharge(context.Background(), repo.schedule, run)
	if repo.paidRunID != uuid.Nil {
		t.Fatal("a processing charge must not mark the run paid; the webhook settles it")
	}
	if repo.retryRunID != uuid.Nil || repo.failedRunID != uuid.Nil {
		t.Fatal("a processing charge is not a failure")
	}
}

func TestAttemptCharge_DeclineSchedulesRetry(t *testing.T) {
	jobs, repo, prov, recorder := newJobsFixture()
	prov.err = &provider.PaymentDeclinedError{DeclineCode: "generic_decline", Message: "declined"}
	run := pendingRun(repo.schedule.ID, 0)

	jobs.attemptCharge(context.Background(), repo.schedule, run)
	if repo.retryRunID != run.ID {
		t.Fatal("expected a retry to be scheduled after the first decline")
	}
	if repo.retryAttempts != 1 {
		t.Fatalf("expected attempt count 1, got %d", repo.retryAttempts)
	}
	if len(recorder.alerts) != 1 || recorder.alerts[0].Kind != "retry_scheduled" {
		t.Fatalf("expected a retry_scheduled alert, got %+v", recorder.alerts)
	}
}

func TestAttemptCharge_InvalidMethodStopsLadder(t *testing.T) {
	jobs, repo, prov, recorder := newJobsFixture()
	prov.err = &provider.InvalidPaymentMethodError{Code: "expired_card", Message: "expired"}
	run := pendingRun(repo.schedule.ID, 0)

	jobs.attemptCharge(context.Background(), repo.schedule, run)
	if repo.failedRunID != run.ID {
		t.Fatal("expected the run to fail immediately for an invalid method")
	}
	if repo.retryRunID != uuid.Nil {
		t.Fatal("an invalid method must not enter the retry ladder")
	}
	if !repo.disableCalled || repo.disabledID != repo.schedule.ID {
		t.Fatal("expected the schedule to be disabled")
	}
	if len(recorder.alerts) != 1 || recorder.alerts[0].Kind != "method_invalid" {
		t.Fatalf("expected a method_invalid alert, got %+v", recorder.alerts)
	}
}

func TestAttemptCharge_ExhaustsAfterMaxAttempts(t *testing.T) {
	jobs, repo, prov, recorder := newJobsFixture()
	prov.err = &provider.PaymentDeclinedError{DeclineCode: "generic_decline", Message: "declined"}
	run := pendingRun(repo.schedule.ID, maxChargeAttempts-1)

	jobs.attemptCharge(context.Background(), repo.schedule, run)
	if repo.failedRunID != run.ID {
		t.Fatal("expected the run to fail after the final attempt")
	}
	if repo.retryRunID != uuid.Nil {
		t.Fatal("no further retry may be scheduled after the ladder is exhausted")
	}
	if len(recorder.alerts) != 1 || recorder.alerts[0].Kind != "exhausted" {
		t.Fatalf("expected an exhausted alert, got %+v", recorder.alerts)
	}
}

func TestAttemptCharge_UnknownOutcomeSchedulesRequery(t *testing.T) {
	jobs, repo, prov, recorder := newJobsFixture()
	prov.err = &provider.ProviderError{Code: "api_connection_error", Message: "connection reset"}
	run := pendingRun(repo.schedule.ID, 0)

	before := time.Now().UTC()
	jobs.attemptCharge(context.Background(), repo.schedule, run)

	if repo.createdPayment != nil {
		t.Fatal("no ledger row may be written while the outcome is unknown")
	}
	if repo.retryRunID != run.ID {
		t.Fatal("expected the run to be parked for a requery")
	}
	if repo.retryAttempts != 0 {
		t.Fatalf("a requery must not consume a ladder attempt, got attempt count %d", repo.retryAttempts)
	}
	if repo.retryAt.After(before.Add(2 * time.Hour)) {
		t.Fatalf("requery must land on the next retry pass, not the ladder, got %v", repo.retryAt)
	}
	if len(recorder.alerts) != 0 {
		t.Fatalf("a requery is not a decline, no alert expected, got %+v", recorder.alerts)
	}
}

func TestAttemptCharge_RequeryReplaysSameIdempotencyKey(t *testing.T) {
	jobs, repo, prov, _ := newJobsFixture()
	prov.err = &provider.ProviderError{Code: "api_connection_error", Message: "connection reset"}
	run := pendingRun(repo.schedule.ID, 0)

	jobs.attemptCharge(context.Background(), repo.schedule, run)
	// The run keeps its attempt count, so the next pass resubmits the
	// same attempt.
	jobs.attemptCharge(context.Background(), repo.schedule, run)

	if len(prov.sentKeys) != 2 {
		t.Fatalf("expected two submissions, got %d", len(prov.sentKeys))
	}
	if prov.sentKeys[0] == "" || prov.sentKeys[0] != prov.sentKeys[1] {
		t.Fatalf("a requery must replay the original key, got %q then %q", prov.sentKeys[0], prov.sentKeys[1])
	}

	declined := pendingRun(repo.schedule.ID, 1)
	declined.ID = run.ID
	jobs.attemptCharge(context.Background(), repo.schedule, declined)
	if prov.sentKeys[2] == prov.sentKeys[0] {
		t.Fatal("a later ladder attempt must carry a fresh key")
	}
}

func TestAttemptCharge_AppliesRequestDeadline(t *testing.T) {
	jobs, repo, prov, _ := newJobsFixture()
	run := pendingRun(repo.schedule.ID, 0)

	jobs.attemptCharge(context.Background(), repo.schedule, run)
	if !prov.hadDeadline {
		t.Fatal("every scheduled provider call must carry a deadline")
	}
}

func TestRunRetries_ClosesRunForDisabledSchedule(t *testing.T) {
	jobs, repo, prov, _ := newJobsFixture()
	repo.schedule.Enabled = false
	run := pendingRun(repo.schedule.ID, 1)
	repo.dueRuns = []domain.AutoPayRun{*run}

	jobs.RunRetries()
	if prov.createCalled {
		t.Fatal("a disabled schedule must not be charged")
	}
	if repo.failedRunID != run.ID {
		t.Fatal("expected the orphaned run to be closed out")
	}
	if repo.failedReason != "schedule disabled" {
		t.Fatalf("unexpected close reason %q", repo.failedReason)
	}
}

func TestNextAttemptTime_FirstRetrySkipsWeekend(t *testing.T) {
	// Friday 2026-09-04.
	friday := time.Date(2026, time.September, 4, 14, 0, 0, 0, time.UTC)
	next := nextAttemptTime(friday, 1)
	if next.Weekday() != time.Monday || next.Day() != 7 {
		t.Fatalf("expected Monday 2026-09-07, got %v", next)
	}

	tuesday := time.Date(2026, time.September, 1, 14, 0, 0, 0, time.UTC)
	next = nextAttemptTime(tuesday, 1)
	if next.Weekday() != time.Wednesday || next.Day() != 2 {
		t.Fatalf("expected Wednesday 2026-09-02, got %v", next)
	}
}

func TestNextAttemptTime_LaterRungsUseFixedOffsets(t *testing.T) {
	base := time.Date(2026, time.September, 1, 14, 0, 0, 0, time.UTC)
	if got := nextAttemptTime(base, 2); got.Day() != 4 {
		t.Fatalf("expected the second retry three days out, got %v", got)
	}
	if got := nextAttemptTime(base, 3); got.Day() != 8 {
		t.Fatalf("expected the third retry seven days out, got %v", got)
	}
}

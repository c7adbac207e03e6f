package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/store"
	"github.com/happytenant/payment-service/pkg/rabbitmq"
)

type autopayRepoStub struct {
	chargeRepoStub

	existing *domain.AutoPaySchedule

	created *domain.AutoPaySchedule
	updated *domain.AutoPaySchedule
}

func (s *autopayRepoStub) FindAutoPayScheduleByLeaseID(ctx context.Context, leaseID uuid.UUID) (*domain.AutoPaySchedule, error) {
	if s.existing == nil {
		return nil, store.ErrScheduleNotFound
	}
	return s.existing, nil
}

func (s *autopayRepoStub) CreateAutoPaySchedule(ctx context.Context, schedule *domain.AutoPaySchedule) error {
	s.created = schedule
	return nil
}

func (s *autopayRepoStub) UpdateAutoPaySchedule(ctx context.Context, schedule *domain.AutoPaySchedule) error {
	s.updated = schedule
	return nil
}

func newAutoPayFixture() (*Service, *autopayRepoStub) {
	repo := &autopayRepoStub{
		chargeRepoStub: chargeRepoStub{
			method: &domain.PaymentMethod{
				ProviderPaymentMethodID: "pm_123",
			},
			account: &domain.ConnectedAccount{
				ProviderAccountID: "acct_123",
				ChargesEnabled:    true,
			},
		},
	}
	svc := NewService(repo, &chargeProviderStub{}, &rabbitmq.EventProducerFallback{}, ServiceConfig{})
	return svc, repo
}

func autopayRequest() domain.AutoPayRequest {
	return domain.AutoPayRequest{
		LeaseID:         uuid.New(),
		CustomerID:      uuid.New(),
		PaymentMethodID: "pm_123",
		DestinationID:   "acct_123",
		DayOfMonth:      1,
		RentAmount:      1800,
	}
}

func TestConfigureAutoPay_CreatesEnabledSchedule(t *testing.T) {
	svc, repo := newAutoPayFixture()

	schedule, err := svc.ConfigureAutoPay(context.Background(), autopayRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !schedule.Enabled {
		t.Fatal("a freshly configured schedule must be enabled")
	}
	if repo.created == nil {
		t.Fatal("expected the schedule persisted")
	}
}

func TestConfigureAutoPay_RejectsInvalidDayOfMonth(t *testing.T) {
	svc, _ := newAutoPayFixture()

	for _, day := range []int{0, 32, -3} {
		req := autopayRequest()
		req.DayOfMonth = day
		if _, err := svc.ConfigureAutoPay(context.Background(), req); !errors.Is(err, ErrInvalidDayOfMonth) {
			t.Fatalf("day %d: expected ErrInvalidDayOfMonth, got %v", day, err)
		}
	}
}

func TestConfigureAutoPay_AllowsDay31ForClamping(t *testing.T) {
	svc, _ := newAutoPayFixture()

	req := autopayRequest()
	req.DayOfMonth = 31
	if _, err := svc.ConfigureAutoPay(context.Background(), req); err != nil {
		t.Fatalf("day 31 is valid and clamps to short months, got %v", err)
	}
}

func TestConfigureAutoPay_RejectsFlaggedMethod(t *testing.T) {
	svc, repo := newAutoPayFixture()
	repo.method.NeedsReplacement = true

	if _, err := svc.ConfigureAutoPay(context.Background(), autopayRequest()); !errors.Is(err, ErrMethodNeedsReplacement) {
		t.Fatalf("expected ErrMethodNeedsReplacement, got %v", err)
	}
}

func TestConfigureAutoPay_RejectsUnchargeableDestination(t *testing.T) {
	svc, repo := newAutoPayFixture()
	repo.account.ChargesEnabled = false

	if _, err := svc.ConfigureAutoPay(context.Background(), autopayRequest()); !errors.Is(err, ErrAccountNotChargeable) {
		t.Fatalf("expected ErrAccountNotChargeable, got %v", err)
	}
}

func TestConfigureAutoPay_ReconfiguresExistingSchedule(t *testing.T) {
	svc, repo := newAutoPayFixture()
	req := autopayRequest()
	repo.existing = &domain.AutoPaySchedule{
		ID:              uuid.New(),
		LeaseID:         req.LeaseID,
		CustomerID:      req.CustomerID,
		PaymentMethodID: "pm_old",
		DestinationID:   "acct_123",
		DayOfMonth:      5,
		RentAmount:      1500,
		Enabled:         false,
	}

	schedule, err := svc.ConfigureAutoPay(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schedule.ID != repo.existing.ID {
		t.Fatal("reconfiguring must keep the same schedule, not create a second one")
	}
	if repo.created != nil {
		t.Fatal("no new schedule may be created for an existing lease")
	}
	if repo.updated == nil || repo.updated.PaymentMethodID != "pm_123" || !repo.updated.Enabled {
		t.Fatal("expected the existing schedule updated and re-enabled")
	}
}

func TestPeriod_FormatsYearMonth(t *testing.T) {
	ts := domain.Period(time.Date(2026, time.September, 1, 14, 0, 0, 0, time.UTC))
	if ts != "2026-09" {
		t.Fatalf("expected 2026-09, got %q", ts)
	}
}

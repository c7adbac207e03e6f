/**
 * @description
 * AutoPay schedule management: enabling, reconfiguring, and disabling a
 * lease's recurring rent charge. The scheduled charging itself lives in
 * jobs.go.
 */

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/store"
)

// ConfigureAutoPay creates or updates the recurring charge for a lease.
// Day-of-month values past a month's end fire on the month's last day.
func (s *Service) ConfigureAutoPay(ctx context.Context, req domain.AutoPayRequest) (*domain.AutoPaySchedule, error) {
	if req.DayOfMonth < 1 || req.DayOfMonth > 31 {
		return nil, ErrInvalidDayOfMonth
	}
	if req.RentAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	method, err := s.repo.FindPaymentMethodByProviderID(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if method.NeedsReplacement {
		return nil, ErrMethodNeedsReplacement
	}
	if account, err := s.repo.FindConnectedAccountByProviderID(ctx, req.DestinationID); err != nil {
		return nil, err
	} else if !account.ChargesEnabled {
		return nil, ErrAccountNotChargeable
	}

	existing, err := s.repo.FindAutoPayScheduleByLeaseID(ctx, req.LeaseID)
	if err != nil && !errors.Is(err, store.ErrScheduleNotFound) {
		return nil, err
	}
	if existing != nil {
		existing.PaymentMethodID = req.PaymentMethodID
		existing.DestinationID = req.DestinationID
		existing.DayOfMonth = req.DayOfMonth
		existing.RentAmount = req.RentAmount
		existing.MonthlyFees = req.MonthlyFees
		existing.Enabled = true
		if err := s.repo.UpdateAutoPaySchedule(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update autopay schedule: %w", err)
		}
		return existing, nil
	}

	schedule := &domain.AutoPaySchedule{
		ID:              uuid.New(),
		LeaseID:         req.LeaseID,
		CustomerID:      req.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
		DestinationID:   req.DestinationID,
		DayOfMonth:      req.DayOfMonth,
		RentAmount:      req.RentAmount,
		MonthlyFees:     req.MonthlyFees,
		Enabled:         true,
	}
	if err := s.repo.CreateAutoPaySchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to create autopay schedule: %w", err)
	}
	return schedule, nil
}

// GetAutoPaySchedule returns the schedule for a lease.
func (s *Service) GetAutoPaySchedule(ctx context.Context, leaseID uuid.UUID) (*domain.AutoPaySchedule, error) {
	return s.repo.FindAutoPayScheduleByLeaseID(ctx, leaseID)
}

// DisableAutoPay turns a schedule off. No new period starts, and the next
// retry pass closes out any run still mid-ladder.
func (s *Service) DisableAutoPay(ctx context.Context, scheduleID uuid.UUID) error {
	return s.repo.SetAutoPayEnabled(ctx, scheduleID, false)
}

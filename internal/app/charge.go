/**
 * @description
 * Charge processing. One entry point serves both user-initiated "pay now"
 * submissions and scheduler-initiated recurring charges: validate, check
 * the destination account can accept charges, compute the platform fee,
 * submit a single destination charge, and record whatever the processor
 * answered. Failed attempts are ledger rows too; retrying is a new attempt,
 * never a mutation of a terminal row.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store, internal/provider, pkg/rabbitmq.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
	"github.com/happytenant/payment-service/pkg/rabbitmq"
)

// ProcessCharge submits one destination charge. The returned payment row
// carries the processor's status verbatim; card charges usually land
// terminal immediately while bank debits come back processing and settle
// via webhook later.
func (s *Service) ProcessCharge(ctx context.Context, req domain.ChargeRequest) (*domain.Payment, error) {
	return s.processCharge(ctx, req, nil, "", "")
}

// ProcessScheduledCharge submits the recurring charge for one AutoPay run.
// The resulting ledger row is stamped with the schedule and period so the
// webhook can settle the run when a bank debit clears. The idempotency key
// is derived from the run and its attempt number: re-submitting the same
// attempt after an unknown outcome replays the original charge at the
// processor instead of creating a second one.
func (s *Service) ProcessScheduledCharge(ctx context.Context, schedule *domain.AutoPaySchedule, run *domain.AutoPayRun) (*domain.Payment, error) {
	req := domain.ChargeRequest{
		CustomerID:      schedule.CustomerID,
		PaymentMethodID: schedule.PaymentMethodID,
		DestinationID:   schedule.DestinationID,
		Amount:          schedule.ChargeAmount(),
		Description:     fmt.Sprintf("Rent for %s", run.Period),
	}
	return s.processCharge(ctx, req, &schedule.ID, run.Period, ScheduledChargeKey(run))
}

// ScheduledChargeKey is the processor idempotency key for one attempt of
// one AutoPay run.
func ScheduledChargeKey(run *domain.AutoPayRun) string {
	return fmt.Sprintf("autopay-%s-%d", run.ID, run.AttemptCount+1)
}

func (s *Service) processCharge(ctx context.Context, req domain.ChargeRequest, scheduleID *uuid.UUID, period, idempotencyKey string) (*domain.Payment, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	customer, err := s.activeCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	methodID := req.PaymentMethodID
	if methodID == "" {
		methodID = customer.DefaultPaymentMethodID
	}
	if methodID == "" {
		return nil, errors.New("customer has no payment method on file")
	}
	// The mirror is authoritative: a method that was detached (or a stale
	// denormalized default) must not reach the processor.
	method, err := s.repo.FindPaymentMethodByProviderID(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if method.NeedsReplacement {
		return nil, ErrMethodNeedsReplacement
	}

	// Verify the destination can accept charges before touching the
	// processor; a charge against a restricted account would be rejected
	// anyway, and this keeps the failure local and cheap.
	account, err := s.repo.FindConnectedAccountByProviderID(ctx, req.DestinationID)
	if err != nil {
		return nil, err
	}
	if !account.ChargesEnabled {
		return nil, ErrAccountNotChargeable
	}

	total, fee := AllocateFee(s.cfg.FeeMode, req.Amount)
	if req.ApplicationFee != nil {
		// An explicit fee from the caller replaces the computed one; the
		// mode still decides who bears it.
		total, fee = AllocateExplicitFee(s.cfg.FeeMode, req.Amount, *req.ApplicationFee)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	descriptor := req.StatementDescriptor
	if descriptor == "" {
		descriptor = s.cfg.StatementDescriptor
	}

	payment := &domain.Payment{
		ID:              uuid.New(),
		CustomerID:      customer.ID,
		PaymentMethodID: methodID,
		DestinationID:   req.DestinationID,
		Amount:          total,
		Currency:        currency,
		PlatformFee:     fee,
		NetAmount:       roundCents(total - fee),
		Description:     req.Description,
		ScheduleID:      scheduleID,
		Period:          period,
	}

	if idempotencyKey == "" {
		idempotencyKey = payment.ID.String()
	}
	params := provider.ChargeParams{
		Amount:              total,
		Currency:            currency,
		CustomerID:          customer.ProviderCustomerID,
		PaymentMethodID:     methodID,
		DestinationID:       req.DestinationID,
		ApplicationFee:      fee,
		StatementDescriptor: truncateDescriptor(descriptor),
		Description:         req.Description,
		Metadata:            req.Metadata,
		IdempotencyKey:      idempotencyKey,
	}

	result, chargeErr := s.provider.CreatePayment(ctx, params)
	if chargeErr != nil {
		if !recordableChargeError(chargeErr) {
			// Transport-level failure: the outcome at the processor is
			// unknown, so no ledger row is written. Re-submitting with the
			// same idempotency key resolves the first attempt instead of
			// creating a second charge.
			return nil, fmt.Errorf("charge submission failed: %w", chargeErr)
		}
		payment.Status = domain.PaymentStatusFailed
		payment.FailureCode, payment.FailureMessage = chargeFailureDetails(chargeErr)

		var invalid *provider.InvalidPaymentMethodError
		if errors.As(chargeErr, &invalid) {
			if err := s.repo.FlagPaymentMethodForReplacement(ctx, methodID); err != nil {
				log.Printf("ProcessCharge: failed to flag method %s for replacement: %v", methodID, err)
			}
		}
	} else {
		payment.ProviderPaymentID = result.ProviderPaymentID
		payment.Status = result.Status
		payment.FailureCode = result.FailureCode
		payment.FailureMessage = result.FailureMessage
		payment.ReceiptURL = result.ReceiptURL
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		log.Printf("ProcessCharge: failed to record payment %s: %v", payment.ID, err)
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	if payment.Status.Terminal() {
		s.publishPaymentEvent(ctx, payment)
	}
	if chargeErr != nil {
		return payment, chargeErr
	}
	return payment, nil
}

// GetPayment returns a ledger row, refreshed from the processor when it is
// still in flight.
func (s *Service) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.Terminal() || payment.ProviderPaymentID == "" {
		return payment, nil
	}

	result, err := s.provider.GetPayment(ctx, payment.ProviderPaymentID)
	if err != nil {
		log.Printf("GetPayment: refresh of %s failed, serving stored state: %v", payment.ProviderPaymentID, err)
		return payment, nil
	}
	if result.Status != payment.Status {
		update := storeStatusUpdate(result)
		if err := s.repo.ApplyPaymentStatus(ctx, payment.ProviderPaymentID, update); err != nil {
			return nil, err
		}
		payment.Status = result.Status
		payment.FailureCode = result.FailureCode
		payment.FailureMessage = result.FailureMessage
		if result.ReceiptURL != "" {
			payment.ReceiptURL = result.ReceiptURL
		}
	}
	return payment, nil
}

// ListPayments returns a customer's payment history, newest first.
func (s *Service) ListPayments(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListPaymentsByCustomer(ctx, customerID, limit, offset)
}

// RefundPayment reverses part or all of a succeeded payment.
func (s *Service) RefundPayment(ctx context.Context, paymentID uuid.UUID, req domain.RefundRequest) (*domain.Refund, error) {
	payment, err := s.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusSucceeded {
		return nil, ErrPaymentNotRefundable
	}
	if req.Amount < 0 || req.Amount > payment.Amount {
		return nil, ErrRefundExceedsPayment
	}

	result, err := s.provider.RefundPayment(ctx, payment.ProviderPaymentID, req.Amount, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("refund failed: %w", err)
	}

	refund := &domain.Refund{
		ID:                uuid.New(),
		ProviderRefundID:  result.ProviderRefundID,
		ProviderPaymentID: payment.ProviderPaymentID,
		Amount:            result.Amount,
		Status:            result.Status,
		Reason:            req.Reason,
	}
	if err := s.repo.CreateRefund(ctx, refund); err != nil {
		log.Printf("RefundPayment: provider refund %s created but local record failed: %v", result.ProviderRefundID, err)
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}
	return refund, nil
}

func (s *Service) publishPaymentEvent(ctx context.Context, payment *domain.Payment) {
	event := rabbitmq.PaymentEvent{
		PaymentID:  payment.ID,
		CustomerID: payment.CustomerID,
		Amount:     payment.Amount,
		Status:     string(payment.Status),
		Reason:     payment.FailureMessage,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.producer.PublishPaymentEvent(ctx, event); err != nil {
		log.Printf("publishPaymentEvent: failed for payment %s: %v", payment.ID, err)
	}
}

// recordableChargeError reports whether a charge error is a definitive
// decline worth a failed ledger row, as opposed to a transport failure
// where the outcome is unknown.
func recordableChargeError(err error) bool {
	var declined *provider.PaymentDeclinedError
	var insufficient *provider.InsufficientFundsError
	var invalid *provider.InvalidPaymentMethodError
	return errors.As(err, &declined) || errors.As(err, &insufficient) || errors.As(err, &invalid)
}

func chargeFailureDetails(err error) (code, message string) {
	var declined *provider.PaymentDeclinedError
	if errors.As(err, &declined) {
		return declined.DeclineCode, declined.Message
	}
	var insufficient *provider.InsufficientFundsError
	if errors.As(err, &insufficient) {
		return "insufficient_funds", insufficient.Error()
	}
	var invalid *provider.InvalidPaymentMethodError
	if errors.As(err, &invalid) {
		return invalid.Code, invalid.Message
	}
	return "", err.Error()
}

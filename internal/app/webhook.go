/**
 * @description
 * Webhook dispatch. Verified events are routed through a handler registry
 * keyed by event type; each handler runs inside the same database
 * transaction that records the event id, so processing is exactly-once per
 * delivery: replays are acked without effect, and a failed handler rolls
 * the id back so the processor redelivers.
 *
 * Unknown event types are acknowledged and skipped; subscribing to a new
 * type at the processor must never break ingestion.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/provider, internal/store, pkg/rabbitmq.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
	"github.com/happytenant/payment-service/internal/store"
	"github.com/happytenant/payment-service/pkg/rabbitmq"
)

// eventHandler applies one verified event inside the dedup transaction.
type eventHandler func(ctx context.Context, tx store.LedgerTx, event *provider.Event) error

func (s *Service) buildHandlerRegistry() map[string]eventHandler {
	return map[string]eventHandler{
		"payment_intent.succeeded":      s.handlePaymentEvent,
		"payment_intent.processing":     s.handlePaymentEvent,
		"payment_intent.payment_failed": s.handlePaymentEvent,
		"payment_intent.canceled":       s.handlePaymentEvent,
		"charge.refunded":               s.handleChargeRefunded,
		"payout.paid":                   s.handlePayoutEvent,
		"payout.failed":                 s.handlePayoutEvent,
		"account.updated":               s.handleAccountUpdated,
		"payment_method.detached":       s.handleMethodDetached,
	}
}

// HandleWebhook verifies and dispatches one delivery. A nil return means
// the delivery should be acknowledged; only signature failures and
// transient processing errors bubble up.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string, connect bool) error {
	var event *provider.Event
	var err error
	if connect {
		event, err = s.provider.VerifyConnectWebhook(payload, signature)
	} else {
		event, err = s.provider.VerifyWebhook(payload, signature)
	}
	if err != nil {
		return err
	}

	handler, ok := s.handlers[event.Type]
	if !ok {
		log.Printf("HandleWebhook: acking unhandled event type %s (%s)", event.Type, event.ID)
		return nil
	}

	err = s.repo.ProcessEventOnce(ctx, event.ID, event.Type, func(ctx context.Context, tx store.LedgerTx) error {
		return handler(ctx, tx, event)
	})
	if err != nil {
		if errors.Is(err, store.ErrEventAlreadyProcessed) {
			log.Printf("HandleWebhook: duplicate delivery of %s acknowledged", event.ID)
			return nil
		}
		return err
	}

	s.publishWebhookOutcome(ctx, event)
	return nil
}

// handlePaymentEvent converges the ledger row onto the processor's view.
// The rank guard in the store makes this safe out of order: a stale
// "processing" arriving after "succeeded" is a no-op.
func (s *Service) handlePaymentEvent(ctx context.Context, tx store.LedgerTx, event *provider.Event) error {
	if event.Payment == nil {
		return nil
	}
	update := storeStatusUpdate(event.Payment)
	if err := tx.ApplyPaymentStatus(ctx, event.Payment.ProviderPaymentID, update); err != nil {
		return err
	}
	if event.Payment.Status == domain.PaymentStatusSucceeded {
		return tx.MarkRunPaidByProviderPayment(ctx, event.Payment.ProviderPaymentID)
	}
	return nil
}

func (s *Service) handleChargeRefunded(ctx context.Context, tx store.LedgerTx, event *provider.Event) error {
	if event.Refund == nil {
		return nil
	}
	refund := &domain.Refund{
		ID:                uuid.New(),
		ProviderRefundID:  event.Refund.ProviderRefundID,
		ProviderPaymentID: event.Refund.ProviderPaymentID,
		Amount:            event.Refund.Amount,
		Status:            event.Refund.Status,
		Reason:            event.Refund.Reason,
	}
	err := tx.RecordRefund(ctx, refund)
	if errors.Is(err, store.ErrPaymentNotFound) {
		// Refund of a charge we never initiated; nothing to reconcile.
		log.Printf("handleChargeRefunded: no local payment for %s, acking", event.Refund.ProviderPaymentID)
		return nil
	}
	return err
}

func (s *Service) handlePayoutEvent(ctx context.Context, tx store.LedgerTx, event *provider.Event) error {
	if event.Payout == nil {
		return nil
	}
	payout := &domain.Payout{
		ID:               uuid.New(),
		ProviderPayoutID: event.Payout.ProviderPayoutID,
		AccountID:        event.Payout.AccountID,
		Amount:           event.Payout.Amount,
		Currency:         event.Payout.Currency,
		Status:           event.Payout.Status,
		FailureCode:      event.Payout.FailureCode,
		FailureMessage:   event.Payout.FailureMessage,
	}
	if !event.Payout.ArrivalDate.IsZero() {
		arrival := event.Payout.ArrivalDate
		payout.ArrivalDate = &arrival
	}
	return tx.UpsertPayout(ctx, payout)
}

func (s *Service) handleAccountUpdated(ctx context.Context, tx store.LedgerTx, event *provider.Event) error {
	if event.Account == nil {
		return nil
	}
	err := tx.UpdateAccountStatus(ctx, event.Account.ProviderAccountID, store.UpdateAccountStatusParams{
		ChargesEnabled:   event.Account.ChargesEnabled,
		PayoutsEnabled:   event.Account.PayoutsEnabled,
		DetailsSubmitted: event.Account.DetailsSubmitted,
		CurrentlyDue:     event.Account.CurrentlyDue,
		EventuallyDue:    event.Account.EventuallyDue,
		PastDue:          event.Account.PastDue,
		DisabledReason:   event.Account.DisabledReason,
	})
	if errors.Is(err, store.ErrAccountNotFound) {
		// An account on the platform that this service never mirrored.
		log.Printf("handleAccountUpdated: no local mirror for %s, acking", event.Account.ProviderAccountID)
		return nil
	}
	return err
}

// handleMethodDetached removes the mirrored method and turns off any
// AutoPay schedule that charged through it, so the next scheduler pass
// cannot pick a method that no longer exists.
func (s *Service) handleMethodDetached(ctx context.Context, tx store.LedgerTx, event *provider.Event) error {
	if event.PaymentMethodID == "" {
		return nil
	}
	disabled, err := tx.DisableSchedulesForMethod(ctx, event.PaymentMethodID)
	if err != nil {
		return err
	}
	if disabled > 0 {
		log.Printf("handleMethodDetached: disabled %d autopay schedule(s) for method %s", disabled, event.PaymentMethodID)
	}
	return tx.MarkPaymentMethodDetached(ctx, event.PaymentMethodID)
}

// publishWebhookOutcome emits broker notifications after the transaction
// committed. Publishing is best effort; the ledger is already consistent.
func (s *Service) publishWebhookOutcome(ctx context.Context, event *provider.Event) {
	if event.Payment != nil && event.Payment.Status.Terminal() {
		payment, err := s.repo.FindPaymentByProviderID(ctx, event.Payment.ProviderPaymentID)
		if err != nil {
			return
		}
		if payment.Status != event.Payment.Status {
			// The rank guard skipped this delivery; the stored terminal
			// state was already published when it landed.
			return
		}
		s.publishPaymentEvent(ctx, payment)
	}
	if event.PaymentMethodID != "" {
		alert := rabbitmq.AutoPayAlertEvent{
			Kind:      "method_detached",
			Reason:    "payment method was removed at the processor",
			Timestamp: time.Now().UTC(),
		}
		if err := s.producer.PublishAutoPayAlert(ctx, alert); err != nil {
			log.Printf("publishWebhookOutcome: alert publish failed: %v", err)
		}
	}
}

func storeStatusUpdate(result *provider.PaymentResult) store.PaymentStatusUpdate {
	return store.PaymentStatusUpdate{
		Status:         result.Status,
		FailureCode:    result.FailureCode,
		FailureMessage: result.FailureMessage,
		ReceiptURL:     result.ReceiptURL,
	}
}

package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
	"github.com/happytenant/payment-service/internal/store"
)

type ledgerTxStub struct {
	appliedPaymentID string
	appliedUpdate    store.PaymentStatusUpdate
	runPaidFor       string
	recordedRefund   *domain.Refund
	refundErr        error
	upsertedPayout   *domain.Payout
	accountUpdated   string
	accountErr       error
	detachedMethod   string
	disabledCount    int64
}

func (tx *ledgerTxStub) ApplyPaymentStatus(ctx context.Context, providerPaymentID string, update store.PaymentStatusUpdate) error {
	tx.appliedPaymentID = providerPaymentID
	tx.appliedUpdate = update
	return nil
}

func (tx *ledgerTxStub) RecordRefund(ctx context.Context, refund *domain.Refund) error {
	if tx.refundErr != nil {
		return tx.refundErr
	}
	tx.recordedRefund = refund
	return nil
}

func (tx *ledgerTxStub) UpsertPayout(ctx context.Context, payout *domain.Payout) error {
	tx.upsertedPayout = payout
	return nil
}

func (tx *ledgerTxStub) UpdateAccountStatus(ctx context.Context, providerAccountID string, params store.UpdateAccountStatusParams) error {
	if tx.accountErr != nil {
		return tx.accountErr
	}
	tx.accountUpdated = providerAccountID
	return nil
}

func (tx *ledgerTxStub) MarkPaymentMethodDetached(ctx context.Context, providerMethodID string) error {
	tx.detachedMethod = providerMethodID
	return nil
}

func (tx *ledgerTxStub) MarkRunPaidByProviderPayment(ctx context.Context, providerPaymentID string) error {
	tx.runPaidFor = providerPaymentID
	return nil
}

func (tx *ledgerTxStub) DisableSchedulesForMethod(ctx context.Context, providerMethodID string) (int64, error) {
	tx.disabledCount++
	return tx.disabledCount, nil
}

type webhookRepoStub struct {
	store.Repository

	tx           *ledgerTxStub
	duplicate    bool
	dedupCalled  bool
	dedupEventID string
	payment      *domain.Payment
}

func (s *webhookRepoStub) ProcessEventOnce(ctx context.Context, eventID, eventType string, apply func(ctx context.Context, tx store.LedgerTx) error) error {
	s.dedupCalled = true
	s.dedupEventID = eventID
	if s.duplicate {
		return store.ErrEventAlreadyProcessed
	}
	return apply(ctx, s.tx)
}

func (s *webhookRepoStub) FindPaymentByProviderID(ctx context.Context, providerPaymentID string) (*domain.Payment, error) {
	if s.payment == nil {
		return nil, store.ErrPaymentNotFound
	}
	return s.payment, nil
}

type webhookProviderStub struct {
	provider.Provider

	event *provider.Event
	err   error

	connectCalled bool
}

func (p *webhookProviderStub) VerifyWebhook(payload []byte, signature string) (*provider.Event, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.event, nil
}

func (p *webhookProviderStub) VerifyConnectWebhook(payload []byte, signature string) (*provider.Event, error) {
	p.connectCalled = true
	return p.VerifyWebhook(payload, signature)
}

func newWebhookFixture(event *provider.Event) (*Service, *webhookRepoStub, *webhookProviderStub, *alertRecorder) {
	repo := &webhookRepoStub{tx: &ledgerTxStub{}}
	prov := &webhookProviderStub{event: event}
	recorder := &alertRecorder{}
	svc := NewService(repo, prov, recorder, ServiceConfig{})
	return svc, repo, prov, recorder
}

func TestHandleWebhook_SignatureFailureReturnsError(t *testing.T) {
	svc, repo, prov, _ := newWebhookFixture(nil)
	prov.err = &provider.WebhookSignatureError{Err: errors.New("bad signature")}

	err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", false)
	var sigErr *provider.WebhookSignatureError
	if !errors.As(err, &sigErr) {
		t.Fatalf("expected WebhookSignatureError, got %v", err)
	}
	if repo.dedupCalled {
		t.Fatal("an unverified delivery must never reach the dedup transaction")
	}
}

func TestHandleWebhook_UnknownTypeAcked(t *testing.T) {
	svc, repo, _, _ := newWebhookFixture(&provider.Event{
		ID:   "evt_1",
		Type: "invoice.finalized",
	})

	if err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", false); err != nil {
		t.Fatalf("unknown event types must be acknowledged, got %v", err)
	}
	if repo.dedupCalled {
		t.Fatal("unknown event types are skipped before the dedup transaction")
	}
}

func TestHandleWebhook_DuplicateDeliveryAcked(t *testing.T) {
	svc, repo, _, _ := newWebhookFixture(&provider.Event{
		ID:      "evt_dup",
		Type:    "payment_intent.succeeded",
		Payment: &provider.PaymentResult{ProviderPaymentID: "pi_1", Status: domain.PaymentStatusSucceeded},
	})
	repo.duplicate = true

	if err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", false); err != nil {
		t.Fatalf("duplicate deliveries must be acknowledged, got %v", err)
	}
	if repo.tx.appliedPaymentID != "" {
		t.Fatal("a duplicate delivery must not touch the ledger")
	}
}

func TestHandleWebhook_PaymentSucceededSettlesRun(t *testing.T) {
	svc, repo, _, _ := newWebhookFixture(&provider.Event{
		ID:   "evt_2",
		Type: "payment_intent.succeeded",
		Payment: &provider.PaymentResult{
			ProviderPaymentID: "pi_2",
			Status:            domain.PaymentStatusSucceeded,
			ReceiptURL:        "https://pay.example/receipt",
		},
	})
	repo.payment = &domain.Payment{ID: uuid.New(), ProviderPaymentID: "pi_2", Status: domain.PaymentStatusSucceeded}

	if err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.tx.appliedPaymentID != "pi_2" {
		t.Fatal("expected the payment status to be applied")
	}
	if repo.tx.appliedUpdate.ReceiptURL != "https://pay.example/receipt" {
		t.Fatal("expected the receipt URL to be carried into the update")
	}
	if repo.tx.runPaidFor != "pi_2" {
		t.Fatal("a succeeded payment must settle its autopay run")
	}
}

func TestHandleWebhook_StaleTerminalDeliveryNotRepublished(t *testing.T) {
	svc, repo, _, recorder := newWebhookFixture(&provider.Event{
		ID:   "evt_stale",
		Type: "payment_intent.canceled",
		Payment: &provider.PaymentResult{
			ProviderPaymentID: "pi_2",
			Status:            domain.PaymentStatusCanceled,
		},
	})
	// The ledger already settled on succeeded; the rank guard skips this
	// delivery, and nothing new may be announced downstream.
	repo.payment = &domain.Payment{ID: uuid.New(), ProviderPaymentID: "pi_2", Status: domain.PaymentStatusSucceeded}

	if err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorder.payments) != 0 {
		t.Fatalf("a delivery the rank guard skipped must not be republished, got %+v", recorder.payments)
	}
}

func TestHandleWebhook_PaymentFailedDoesNotSettleRun(t *testing.T) {
	svc, repo, _, _ := newWebhookFixture(&provider.Event{
		ID:   "evt_3",
		Type: "payment_intent.payment_failed",
		Payment: &provider.PaymentResult{
			ProviderPaymentID: "pi_3",
			Status:            domain.PaymentStatusFailed,
			FailureCode:       "insufficient_funds",
		},
	})
	repo.payment = &domain.Payment{ID: uuid.New(), ProviderPaymentID: "pi_3", Status: domain.PaymentStatusFailed}

	if err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.tx.appliedUpdate.FailureCode != "insufficient_funds" {
		t.Fatal("expected the failure code on the update")
	}
	if repo.tx.runPaidFor != "" {
		t.Fatal("a failed payment must not settle a run")
	}
}

func TestHandleWebhook_RefundForUnknownPaymentAcked(t *testing.T) {
	svc, repo, _, _ := newWebhookFixture(&provider.Event{
		ID:     "evt_4",
		Type:   "charge.refunded",
		Refund: &provider.RefundResult{ProviderRefundID: "re_1", ProviderPaymentID: "pi_unknown", Amount: 100},
	})
	repo.tx.refundErr = store.ErrPaymentNotFound

	if err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", false); err != nil {
		t.Fatalf("a refund with no local payment must be acknowledged, got %v", err)
	}
}

func TestHandleWebhook_AccountUpdatedMirrorsSnapshot(t *testing.T) {
	svc, repo, prov, _ := newWebhookFixture(&provider.Event{
		ID:   "evt_5",
		Type: "account.updated",
		Account: &provider.AccountStatus{
			ProviderAccountID: "acct_9",
			ChargesEnabled:    true,
		},
	})

	if err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prov.connectCalled {
		t.Fatal("connect deliveries must verify against the connect secret")
	}
	if repo.tx.accountUpdated != "acct_9" {
		t.Fatal("expected the account snapshot to be mirrored")
	}
}

func TestHandleWebhook_MethodDetachedDisablesSchedules(t *testing.T) {
	svc, repo, _, recorder := newWebhookFixture(&provider.Event{
		ID:              "evt_6",
		Type:            "payment_method.detached",
		PaymentMethodID: "pm_gone",
	})

	if err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.tx.detachedMethod != "pm_gone" {
		t.Fatal("expected the mirrored method to be removed")
	}
	if repo.tx.disabledCount != 1 {
		t.Fatal("expected schedules on the method to be disabled")
	}
	if len(recorder.alerts) != 1 || recorder.alerts[0].Kind != "method_detached" {
		t.Fatalf("expected a method_detached alert, got %+v", recorder.alerts)
	}
}

func TestHandleWebhook_HandlerErrorBubblesForRedelivery(t *testing.T) {
	svc, repo, _, _ := newWebhookFixture(&provider.Event{
		ID:   "evt_7",
		Type: "account.updated",
		Account: &provider.AccountStatus{
			ProviderAccountID: "acct_10",
		},
	})
	repo.tx.accountErr = errors.New("deadlock detected")

	if err := svc.HandleWebhook(context.Background(), []byte("{}"), "sig", false); err == nil {
		t.Fatal("a transient handler failure must bubble up so the processor redelivers")
	}
}

/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the payment service performs. The interface keeps business logic
 * decoupled from PostgreSQL so services can be tested against stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/happytenant/payment-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Customer methods
	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	FindCustomerByID(ctx context.Context, customerID uuid.UUID) (*domain.Customer, error)
	FindCustomerByProviderID(ctx context.Context, providerCustomerID string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer *domain.Customer) error
	ArchiveCustomer(ctx context.Context, customerID uuid.UUID) error

	// Payment method methods
	UpsertPaymentMethod(ctx context.Context, method *domain.PaymentMethod) error
	FindPaymentMethodByProviderID(ctx context.Context, providerMethodID string) (*domain.PaymentMethod, error)
	ListPaymentMethodsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, customerID uuid.UUID, providerMethodID string) error
	DeletePaymentMethodByProviderID(ctx context.Context, providerMethodID string) error
	FlagPaymentMethodForReplacement(ctx context.Context, providerMethodID string) error

	// Connected account methods
	CreateConnectedAccount(ctx context.Context, account *domain.ConnectedAccount) error
	FindConnectedAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.ConnectedAccount, error)
	FindConnectedAccountByLandlordID(ctx context.Context, landlordID uuid.UUID) (*domain.ConnectedAccount, error)
	FindConnectedAccountByProviderID(ctx context.Context, providerAccountID string) (*domain.ConnectedAccount, error)
	UpdateConnectedAccountStatus(ctx context.Context, providerAccountID string, params UpdateAccountStatusParams) error
	UpdateTrustLevel(ctx context.Context, accountID uuid.UUID, level domain.TrustLevel, delayDays int64) error

	// Payment ledger methods
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	FindPaymentByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error)
	FindPaymentByProviderID(ctx context.Context, providerPaymentID string) (*domain.Payment, error)
	ListPaymentsByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Payment, error)
	ApplyPaymentStatus(ctx context.Context, providerPaymentID string, update PaymentStatusUpdate) error
	CreateRefund(ctx context.Context, refund *domain.Refund) error
	UpsertPayout(ctx context.Context, payout *domain.Payout) error

	// AutoPay methods
	CreateAutoPaySchedule(ctx context.Context, schedule *domain.AutoPaySchedule) error
	FindAutoPayScheduleByID(ctx context.Context, scheduleID uuid.UUID) (*domain.AutoPaySchedule, error)
	FindAutoPayScheduleByLeaseID(ctx context.Context, leaseID uuid.UUID) (*domain.AutoPaySchedule, error)
	UpdateAutoPaySchedule(ctx context.Context, schedule *domain.AutoPaySchedule) error
	SetAutoPayEnabled(ctx context.Context, scheduleID uuid.UUID, enabled bool) error
	FindDueSchedules(ctx context.Context, dueDay int, lastDayOfMonth bool, period string) ([]domain.AutoPaySchedule, error)
	ClaimAutoPayRun(ctx context.Context, scheduleID uuid.UUID, period string) (*domain.AutoPayRun, bool, error)
	FindRetryDueRuns(ctx context.Context, now time.Time) ([]domain.AutoPayRun, error)
	MarkAutoPayRunPaid(ctx context.Context, runID uuid.UUID) error
	MarkAutoPayRunRetrying(ctx context.Context, runID uuid.UUID, attemptCount int, nextAttemptAt time.Time, failure string) error
	MarkAutoPayRunFailed(ctx context.Context, runID uuid.UUID, attemptCount int, failure string) error

	// Webhook ledger methods
	ProcessEventOnce(ctx context.Context, eventID, eventType string, apply func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx exposes the ledger updates a webhook handler may perform. All of
// them run inside the same database transaction that records the event id,
// so a handler either fully applies or the event can be redelivered.
type LedgerTx interface {
	ApplyPaymentStatus(ctx context.Context, providerPaymentID string, update PaymentStatusUpdate) error
	RecordRefund(ctx context.Context, refund *domain.Refund) error
	UpsertPayout(ctx context.Context, payout *domain.Payout) error
	UpdateAccountStatus(ctx context.Context, providerAccountID string, params UpdateAccountStatusParams) error
	MarkPaymentMethodDetached(ctx context.Context, providerMethodID string) error
	MarkRunPaidByProviderPayment(ctx context.Context, providerPaymentID string) error
	DisableSchedulesForMethod(ctx context.Context, providerMethodID string) (int64, error)
}

// PaymentStatusUpdate carries a status transition for one payment. The
// transition only lands when the new status outranks the stored one.
type PaymentStatusUpdate struct {
	Status         domain.PaymentStatus
	FailureCode    string
	FailureMessage string
	ReceiptURL     string
}

// UpdateAccountStatusParams mirrors a connected-account snapshot from the
// processor onto the local row.
type UpdateAccountStatusParams struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	CurrentlyDue     []string
	EventuallyDue    []string
	PastDue          []string
	DisabledReason   string
}

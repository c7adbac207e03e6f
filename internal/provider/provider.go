/**
 * @description
 * Provider-agnostic payment processing contract. Every processor adapter
 * implements this interface and maps its own API types into the result
 * structs below; no processor SDK type crosses this boundary.
 *
 * All monetary amounts are in major currency units (dollars). Conversion to
 * the processor's minor units is the adapter's job alone.
 */
package provider

import (
	"context"
	"time"

	"github.com/happytenant/payment-service/internal/domain"
)

// CustomerParams carries payer identity fields to the processor.
type CustomerParams struct {
	Email string
	Name  string
	Phone string
}

// CustomerResult is the provider-agnostic view of a processor customer.
type CustomerResult struct {
	ProviderCustomerID     string
	Email                  string
	Name                   string
	Phone                  string
	DefaultPaymentMethodID string
}

// SetupSessionResult holds the client secret the frontend uses to collect a
// payment method. Secrets are time-limited by the processor.
type SetupSessionResult struct {
	SessionID    string
	ClientSecret string
	ExpiresAt    time.Time
}

// PaymentMethodResult mirrors an attached funding source.
type PaymentMethodResult struct {
	ProviderPaymentMethodID string
	Type                    domain.PaymentMethodType
	Last4                   string
	BankName                string
	CardBrand               string
	CardExpMonth            int64
	CardExpYear             int64
	VerificationStatus      string
	IsDefault               bool
}

// ChargeParams describes one destination charge: the customer is charged,
// and the transfer plus application fee are computed atomically by the
// processor in the same request.
type ChargeParams struct {
	Amount              float64
	Currency            string
	CustomerID          string
	PaymentMethodID     string
	DestinationID       string
	ApplicationFee      float64
	StatementDescriptor string
	Description         string
	Metadata            map[string]string
	// IdempotencyKey dedupes the submission at the processor: replaying
	// the same key returns the charge the first request created instead
	// of creating a second one.
	IdempotencyKey string
}

// PaymentResult is the provider-agnostic outcome of a charge.
type PaymentResult struct {
	ProviderPaymentID string
	Amount            float64
	Currency          string
	Status            domain.PaymentStatus
	ApplicationFee    float64
	DestinationID     string
	FailureCode       string
	FailureMessage    string
	ReceiptURL        string
	CreatedAt         time.Time
}

// RefundResult is the outcome of a refund request.
type RefundResult struct {
	ProviderRefundID  string
	ProviderPaymentID string
	Amount            float64
	Status            string
	Reason            string
}

// AccountParams describes the landlord business entity a connected account
// is opened for.
type AccountParams struct {
	Email        string
	BusinessType string
	BusinessName string
}

// AccountResult identifies a freshly created connected account.
type AccountResult struct {
	ProviderAccountID string
}

// AccountStatus is a point-in-time snapshot of a connected account's
// capabilities and outstanding requirements.
type AccountStatus struct {
	ProviderAccountID string
	ChargesEnabled    bool
	PayoutsEnabled    bool
	DetailsSubmitted  bool
	CurrentlyDue      []string
	EventuallyDue     []string
	PastDue           []string
	DisabledReason    string
}

// LinkResult is a single-use, time-limited URL (onboarding or dashboard).
// Expired links must be regenerated, never reused.
type LinkResult struct {
	URL       string
	ExpiresAt time.Time
}

// PayoutResult mirrors a payout from a connected account's balance to the
// landlord's external bank account.
type PayoutResult struct {
	ProviderPayoutID string
	AccountID        string
	Amount           float64
	Currency         string
	Status           string
	ArrivalDate      time.Time
	FailureCode      string
	FailureMessage   string
}

// Event is a verified webhook notification, normalized so that handlers
// never touch processor types. Exactly one of the object pointers is set
// for event types the adapter recognizes; all are nil for unknown types.
type Event struct {
	ID              string
	Type            string
	AccountID       string
	Payment         *PaymentResult
	Payout          *PayoutResult
	Refund          *RefundResult
	Account         *AccountStatus
	PaymentMethodID string
}

// Provider is the capability contract a processor adapter implements.
type Provider interface {
	// Customers
	CreateCustomer(ctx context.Context, params CustomerParams) (*CustomerResult, error)
	GetCustomer(ctx context.Context, customerID string) (*CustomerResult, error)
	UpdateCustomer(ctx context.Context, customerID string, params CustomerParams) (*CustomerResult, error)

	// Payment methods
	CreateSetupSession(ctx context.Context, customerID string) (*SetupSessionResult, error)
	CreateBankLinkSession(ctx context.Context, customerID string) (*SetupSessionResult, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*PaymentMethodResult, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethodResult, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	// Charges and refunds
	CreatePayment(ctx context.Context, params ChargeParams) (*PaymentResult, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentResult, error)
	RefundPayment(ctx context.Context, paymentID string, amount float64, reason string) (*RefundResult, error)

	// Connected accounts and payouts
	CreateConnectedAccount(ctx context.Context, params AccountParams) (*AccountResult, error)
	GetOnboardingURL(ctx context.Context, accountID, refreshURL, returnURL string) (*LinkResult, error)
	GetExpressDashboardURL(ctx context.Context, accountID string) (*LinkResult, error)
	GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)
	UpdatePayoutSchedule(ctx context.Context, accountID string, delayDays int64) error
	GetPayout(ctx context.Context, accountID, payoutID string) (*PayoutResult, error)

	// Webhooks
	VerifyWebhook(payload []byte, signature string) (*Event, error)
	VerifyConnectWebhook(payload []byte, signature string) (*Event, error)
}

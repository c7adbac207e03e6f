/**
 * @description
 * Local mirror of payer identities and funding sources known to the payment
 * processor. Customers are never hard-deleted so that historical payments
 * keep a valid reference; archiving sets the archived_at timestamp instead.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a tenant identity registered with the payment processor.
type Customer struct {
	ID                     uuid.UUID  `json:"id"`
	ProviderCustomerID     string     `json:"provider_customer_id"`
	Email                  string     `json:"email"`
	Name                   string     `json:"name"`
	Phone                  string     `json:"phone,omitempty"`
	DefaultPaymentMethodID string     `json:"default_payment_method_id,omitempty"`
	ArchivedAt             *time.Time `json:"archived_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// PaymentMethodType enumerates the funding source kinds we accept.
type PaymentMethodType string

const (
	PaymentMethodTypeBank      PaymentMethodType = "bank"
	PaymentMethodTypeCard      PaymentMethodType = "card"
	PaymentMethodTypeApplePay  PaymentMethodType = "apple_pay"
	PaymentMethodTypeGooglePay PaymentMethodType = "google_pay"
)

// PaymentMethod mirrors a funding source attached to exactly one customer.
// At most one method per customer carries IsDefault; the flip is enforced at
// the processor and mirrored locally in a single transaction.
type PaymentMethod struct {
	ID                      uuid.UUID         `json:"id"`
	CustomerID              uuid.UUID         `json:"customer_id"`
	ProviderPaymentMethodID string            `json:"provider_payment_method_id"`
	Type                    PaymentMethodType `json:"type"`
	Last4                   string            `json:"last4,omitempty"`
	BankName                string            `json:"bank_name,omitempty"`
	CardBrand               string            `json:"card_brand,omitempty"`
	CardExpMonth            int64             `json:"card_exp_month,omitempty"`
	CardExpYear             int64             `json:"card_exp_year,omitempty"`
	VerificationStatus      string            `json:"verification_status,omitempty"`
	IsDefault               bool              `json:"is_default"`
	NeedsReplacement        bool              `json:"needs_replacement"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

/**
 * @description
 * Domain models for the payment ledger: charges, refunds, and payouts.
 * Amounts are carried in major currency units (dollars); conversion to the
 * processor's minor units happens inside the provider adapter only.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a single charge attempt.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
)

// Rank orders statuses so that out-of-order webhook deliveries converge:
// a terminal status is never overwritten by an earlier in-flight one.
func (s PaymentStatus) Rank() int {
	switch s {
	case PaymentStatusPending:
		return 1
	case PaymentStatusProcessing:
		return 2
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether the status is final. Terminal payments are
// immutable; a retry creates a new Payment row.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed || s == PaymentStatusCanceled
}

// Payment is one charge attempt against a tenant's payment method, routed to
// a landlord's connected account as a destination charge.
type Payment struct {
	ID                uuid.UUID     `json:"id"`
	ProviderPaymentID string        `json:"provider_payment_id"`
	CustomerID        uuid.UUID     `json:"customer_id"`
	PaymentMethodID   string        `json:"payment_method_id"`
	DestinationID     string        `json:"destination_account_id"`
	Amount            float64       `json:"amount"`
	Currency          string        `json:"currency"`
	PlatformFee       float64       `json:"platform_fee"`
	NetAmount         float64       `json:"net_amount"`
	Status            PaymentStatus `json:"status"`
	FailureCode       string        `json:"failure_code,omitempty"`
	FailureMessage    string        `json:"failure_message,omitempty"`
	ReceiptURL        string        `json:"receipt_url,omitempty"`
	Description       string        `json:"description,omitempty"`
	ScheduleID        *uuid.UUID    `json:"schedule_id,omitempty"`
	Period            string        `json:"period,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Refund reverses part or all of a succeeded payment. The associated
// transfer and platform fee are reversed at the processor in the same call.
type Refund struct {
	ID                uuid.UUID `json:"id"`
	ProviderRefundID  string    `json:"provider_refund_id"`
	PaymentID         uuid.UUID `json:"payment_id"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	Amount            float64   `json:"amount"`
	Status            string    `json:"status"`
	Reason            string    `json:"reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Payout is a movement of settled funds from a connected account's processor
// balance to the landlord's external bank account.
type Payout struct {
	ID               uuid.UUID  `json:"id"`
	ProviderPayoutID string     `json:"provider_payout_id"`
	AccountID        string     `json:"connected_account_id"`
	Amount           float64    `json:"amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	ArrivalDate      *time.Time `json:"arrival_date,omitempty"`
	FailureCode      string     `json:"failure_code,omitempty"`
	FailureMessage   string     `json:"failure_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

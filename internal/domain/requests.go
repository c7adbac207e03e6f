/**
 * @description
 * Request payloads accepted by the HTTP API. Handlers decode into these and
 * hand them to the application services unchanged.
 */
package domain

import "github.com/google/uuid"

// ChargeRequest is a user-initiated "pay now" submission.
type ChargeRequest struct {
	CustomerID          uuid.UUID         `json:"customer_id"`
	PaymentMethodID     string            `json:"payment_method_id"`
	DestinationID       string            `json:"destination_account_id"`
	Amount              float64           `json:"amount"`
	Currency            string            `json:"currency,omitempty"`
	ApplicationFee      *float64          `json:"application_fee,omitempty"`
	StatementDescriptor string            `json:"statement_descriptor,omitempty"`
	Description         string            `json:"description,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// RefundRequest reverses part or all of a succeeded payment.
type RefundRequest struct {
	Amount float64 `json:"amount,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// CreateCustomerRequest registers a tenant with the processor.
type CreateCustomerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// CreateAccountRequest opens a landlord payout account.
type CreateAccountRequest struct {
	LandlordID   uuid.UUID `json:"landlord_id"`
	Email        string    `json:"email"`
	BusinessType string    `json:"business_type"`
	BusinessName string    `json:"business_name,omitempty"`
}

// TrustLevelRequest switches a landlord's payout speed. Expedited payouts
// require the caller to acknowledge the chargeback-clawback risk.
type TrustLevelRequest struct {
	TrustLevel       TrustLevel `json:"trust_level"`
	RiskAcknowledged bool       `json:"risk_acknowledged"`
}

// AutoPayRequest enables or reconfigures a lease's recurring charge.
type AutoPayRequest struct {
	LeaseID         uuid.UUID `json:"lease_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	PaymentMethodID string    `json:"payment_method_id"`
	DestinationID   string    `json:"destination_account_id"`
	DayOfMonth      int       `json:"day_of_month"`
	RentAmount      float64   `json:"rent_amount"`
	MonthlyFees     float64   `json:"monthly_fees,omitempty"`
}

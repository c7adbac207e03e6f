/**
 * @description
 * Charge and refund operations. Every rent charge is a destination charge:
 * the PaymentIntent carries the landlord's connected account in transfer
 * data and the platform fee as an application fee, so the split settles
 * atomically with the charge itself.
 */
package stripepayment

import (
	"context"

	"github.com/stripe/stripe-go/v74"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
)

// CreatePayment creates and immediately confirms an off-session
// PaymentIntent against a saved payment method. The result carries
// whatever status the processor returned; declines surface as typed
// errors from mapError.
func (c *Client) CreatePayment(ctx context.Context, p provider.ChargeParams) (*provider.PaymentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toCents(p.Amount)),
		Currency:      stripe.String(p.Currency),
		Customer:      stripe.String(p.CustomerID),
		PaymentMethod: stripe.String(p.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(p.DestinationID),
		},
	}
	params.Context = ctx

	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	if p.ApplicationFee > 0 {
		params.ApplicationFeeAmount = stripe.Int64(toCents(p.ApplicationFee))
	}
	if p.StatementDescriptor != "" {
		params.StatementDescriptor = stripe.String(p.StatementDescriptor)
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.PaymentIntents.New(params)
	if err != nil {
		return nil, mapError(err)
	}

	return paymentResult(pi), nil
}

// GetPayment fetches the current state of a PaymentIntent. Used to requery
// after a timeout left the outcome unknown.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*provider.PaymentResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := c.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return nil, mapError(err)
	}

	return paymentResult(pi), nil
}

// RefundPayment refunds a charge, fully when amount is zero or partially
// otherwise. The application fee and the transfer to the landlord are
// reversed proportionally so the platform never eats the refunded fee.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amount float64, reason string) (*provider.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent:        stripe.String(paymentID),
		RefundApplicationFee: stripe.Bool(true),
		ReverseTransfer:      stripe.Bool(true),
	}
	params.Context = ctx

	if amount > 0 {
		params.Amount = stripe.Int64(toCents(amount))
	}
	if reason != "" {
		params.Reason = stripe.String(reason)
	}

	r, err := c.Refunds.New(params)
	if err != nil {
		return nil, mapError(err)
	}

	return refundResult(r), nil
}

func paymentResult(pi *stripe.PaymentIntent) *provider.PaymentResult {
	result := &provider.PaymentResult{
		ProviderPaymentID: pi.ID,
		Amount:            toDollars(pi.Amount),
		Currency:          string(pi.Currency),
		Status:            paymentStatus(pi.Status),
		ApplicationFee:    toDollars(pi.ApplicationFeeAmount),
	}

	if pi.Created > 0 {
		result.CreatedAt = timeFromUnix(pi.Created)
	}
	if pi.TransferData != nil && pi.TransferData.Destination != nil {
		result.DestinationID = pi.TransferData.Destination.ID
	}
	if pi.LastPaymentError != nil {
		result.FailureCode = string(pi.LastPaymentError.Code)
		result.FailureMessage = pi.LastPaymentError.Msg
		if pi.LastPaymentError.DeclineCode != "" {
			result.FailureCode = string(pi.LastPaymentError.DeclineCode)
		}
	}
	if pi.LatestCharge != nil && pi.LatestCharge.ReceiptURL != "" {
		result.ReceiptURL = pi.LatestCharge.ReceiptURL
	}

	return result
}

// paymentStatus collapses the processor's intent statuses into the ledger
// statuses. Anything still requiring action counts as pending.
func paymentStatus(s stripe.PaymentIntentStatus) domain.PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return domain.PaymentStatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return domain.PaymentStatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return domain.PaymentStatusFailed
	default:
		return domain.PaymentStatusPending
	}
}

func refundResult(r *stripe.Refund) *provider.RefundResult {
	result := &provider.RefundResult{
		ProviderRefundID: r.ID,
		Amount:           toDollars(r.Amount),
		Status:           string(r.Status),
		Reason:           string(r.Reason),
	}
	if r.PaymentIntent != nil {
		result.ProviderPaymentID = r.PaymentIntent.ID
	}
	return result
}

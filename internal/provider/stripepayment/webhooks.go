/**
 * @description
 * Webhook verification and normalization. Two endpoints exist upstream,
 * one per signing secret: platform events (payment intents, refunds) and
 * Connect events (accounts, payouts). Both funnel through construct().
 *
 * Unknown event types verify successfully and come back with no object
 * attached; the dispatcher acks them without processing.
 */
package stripepayment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/happytenant/payment-service/internal/provider"
)

// VerifyWebhook checks the platform-endpoint signature and normalizes the
// event.
func (c *Client) VerifyWebhook(payload []byte, signature string) (*provider.Event, error) {
	return c.construct(payload, signature, c.webhookSecret)
}

// VerifyConnectWebhook checks the Connect-endpoint signature and
// normalizes the event.
func (c *Client) VerifyConnectWebhook(payload []byte, signature string) (*provider.Event, error) {
	return c.construct(payload, signature, c.connectWebhookSecret)
}

func (c *Client) construct(payload []byte, signature, secret string) (*provider.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &provider.WebhookSignatureError{Err: err}
	}

	out := &provider.Event{
		ID:        event.ID,
		Type:      string(event.Type),
		AccountID: event.Account,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed",
		"payment_intent.processing", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("parsing payment intent from event %s: %w", event.ID, err)
		}
		out.Payment = paymentResult(&pi)

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("parsing charge from event %s: %w", event.ID, err)
		}
		out.Refund = chargeRefund(&ch)

	case "payout.paid", "payout.failed":
		var po stripe.Payout
		if err := json.Unmarshal(event.Data.Raw, &po); err != nil {
			return nil, fmt.Errorf("parsing payout from event %s: %w", event.ID, err)
		}
		out.Payout = payoutResult(&po, event.Account)

	case "account.updated":
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return nil, fmt.Errorf("parsing account from event %s: %w", event.ID, err)
		}
		out.Account = accountStatus(&acct)

	case "payment_method.detached":
		var pm stripe.PaymentMethod
		if err := json.Unmarshal(event.Data.Raw, &pm); err != nil {
			return nil, fmt.Errorf("parsing payment method from event %s: %w", event.ID, err)
		}
		out.PaymentMethodID = pm.ID
	}

	return out, nil
}

// chargeRefund lifts the most recent refund off a refunded charge.
func chargeRefund(ch *stripe.Charge) *provider.RefundResult {
	result := &provider.RefundResult{
		Amount: toDollars(ch.AmountRefunded),
		Status: "succeeded",
	}
	if ch.PaymentIntent != nil {
		result.ProviderPaymentID = ch.PaymentIntent.ID
	}
	if ch.Refunds != nil && len(ch.Refunds.Data) > 0 {
		latest := ch.Refunds.Data[0]
		result.ProviderRefundID = latest.ID
		result.Status = string(latest.Status)
		result.Reason = string(latest.Reason)
	}
	return result
}

/**
 * @description
 * Payment-method operations: setup sessions for collecting a new funding
 * source, bank-link sessions for instant bank verification, and the
 * attach/list/detach/set-default lifecycle.
 */
package stripepayment

import (
	"context"

	"github.com/stripe/stripe-go/v74"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
)

// CreateSetupSession opens a SetupIntent the frontend confirms to attach a
// card or wallet for future off-session charges.
func (c *Client) CreateSetupSession(ctx context.Context, customerID string) (*provider.SetupSessionResult, error) {
	params := &stripe.SetupIntentParams{
		Customer: stripe.String(customerID),
		Usage:    stripe.String("off_session"),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
	}
	params.Context = ctx

	si, err := c.SetupIntents.New(params)
	if err != nil {
		return nil, mapError(err)
	}

	return &provider.SetupSessionResult{
		SessionID:    si.ID,
		ClientSecret: si.ClientSecret,
	}, nil
}

// CreateBankLinkSession opens a SetupIntent configured for bank-account
// linking so the tenant can verify an ACH funding source inline.
func (c *Client) CreateBankLinkSession(ctx context.Context, customerID string) (*provider.SetupSessionResult, error) {
	params := &stripe.SetupIntentParams{
		Customer: stripe.String(customerID),
		Usage:    stripe.String("off_session"),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"us_bank_account",
		}),
		PaymentMethodOptions: &stripe.SetupIntentPaymentMethodOptionsParams{
			USBankAccount: &stripe.SetupIntentPaymentMethodOptionsUSBankAccountParams{
				FinancialConnections: &stripe.SetupIntentPaymentMethodOptionsUSBankAccountFinancialConnectionsParams{
					Permissions: stripe.StringSlice([]string{"payment_method"}),
				},
			},
		},
	}
	params.Context = ctx

	si, err := c.SetupIntents.New(params)
	if err != nil {
		return nil, mapError(err)
	}

	return &provider.SetupSessionResult{
		SessionID:    si.ID,
		ClientSecret: si.ClientSecret,
	}, nil
}

// AttachPaymentMethod attaches a collected method to a customer.
func (c *Client) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*provider.PaymentMethodResult, error) {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx

	pm, err := c.PaymentMethods.Attach(paymentMethodID, params)
	if err != nil {
		return nil, mapError(err)
	}

	return paymentMethodResult(pm, ""), nil
}

// ListPaymentMethods returns every method attached to the customer, with
// the default flag resolved against the customer's invoice settings.
func (c *Client) ListPaymentMethods(ctx context.Context, customerID string) ([]provider.PaymentMethodResult, error) {
	cus, err := c.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx

	var methods []provider.PaymentMethodResult

	iter := c.PaymentMethods.List(params)
	for iter.Next() {
		methods = append(methods, *paymentMethodResult(iter.PaymentMethod(), cus.DefaultPaymentMethodID))
	}

	if err := iter.Err(); err != nil {
		return nil, mapError(err)
	}

	return methods, nil
}

// DetachPaymentMethod removes a method from its customer.
func (c *Client) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx

	if _, err := c.PaymentMethods.Detach(paymentMethodID, params); err != nil {
		return mapError(err)
	}

	return nil
}

// SetDefaultPaymentMethod flips the customer's default method. Stripe
// replaces the prior default atomically in this single call.
func (c *Client) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	params.Context = ctx

	if _, err := c.Customers.Update(customerID, params); err != nil {
		return mapError(err)
	}

	return nil
}

func paymentMethodResult(pm *stripe.PaymentMethod, defaultID string) *provider.PaymentMethodResult {
	result := &provider.PaymentMethodResult{
		ProviderPaymentMethodID: pm.ID,
		IsDefault:               defaultID != "" && pm.ID == defaultID,
	}

	switch pm.Type {
	case stripe.PaymentMethodTypeCard:
		result.Type = domain.PaymentMethodTypeCard
		if pm.Card != nil {
			result.Last4 = pm.Card.Last4
			result.CardBrand = string(pm.Card.Brand)
			result.CardExpMonth = pm.Card.ExpMonth
			result.CardExpYear = pm.Card.ExpYear
			if pm.Card.Wallet != nil {
				switch pm.Card.Wallet.Type {
				case stripe.PaymentMethodCardWalletTypeApplePay:
					result.Type = domain.PaymentMethodTypeApplePay
				case stripe.PaymentMethodCardWalletTypeGooglePay:
					result.Type = domain.PaymentMethodTypeGooglePay
				}
			}
		}
	case stripe.PaymentMethodTypeUSBankAccount:
		result.Type = domain.PaymentMethodTypeBank
		if pm.USBankAccount != nil {
			result.Last4 = pm.USBankAccount.Last4
			result.BankName = pm.USBankAccount.BankName
		}
	default:
		result.Type = domain.PaymentMethodType(pm.Type)
	}

	return result
}

package stripepayment

import (
	"context"

	"github.com/stripe/stripe-go/v74"

	"github.com/happytenant/payment-service/internal/provider"
)

// CreateCustomer registers a payer with Stripe.
func (c *Client) CreateCustomer(ctx context.Context, params provider.CustomerParams) (*provider.CustomerResult, error) {
	cusParams := &stripe.CustomerParams{
		Email: stripe.String(params.Email),
		Name:  stripe.String(params.Name),
	}
	cusParams.Context = ctx

	if params.Phone != "" {
		cusParams.Phone = stripe.String(params.Phone)
	}

	cus, err := c.Customers.New(cusParams)
	if err != nil {
		return nil, mapError(err)
	}

	return customerResult(cus), nil
}

// GetCustomer fetches a payer by its Stripe id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*provider.CustomerResult, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := c.Customers.Get(customerID, params)
	if err != nil {
		return nil, mapError(err)
	}

	return customerResult(cus), nil
}

// UpdateCustomer pushes profile changes to Stripe.
func (c *Client) UpdateCustomer(ctx context.Context, customerID string, params provider.CustomerParams) (*provider.CustomerResult, error) {
	cusParams := &stripe.CustomerParams{}
	cusParams.Context = ctx

	if params.Email != "" {
		cusParams.Email = stripe.String(params.Email)
	}

	if params.Name != "" {
		cusParams.Name = stripe.String(params.Name)
	}

	if params.Phone != "" {
		cusParams.Phone = stripe.String(params.Phone)
	}

	cus, err := c.Customers.Update(customerID, cusParams)
	if err != nil {
		return nil, mapError(err)
	}

	return customerResult(cus), nil
}

func customerResult(cus *stripe.Customer) *provider.CustomerResult {
	result := &provider.CustomerResult{
		ProviderCustomerID: cus.ID,
		Email:              cus.Email,
		Name:               cus.Name,
		Phone:              cus.Phone,
	}

	if cus.InvoiceSettings != nil && cus.InvoiceSettings.DefaultPaymentMethod != nil {
		result.DefaultPaymentMethodID = cus.InvoiceSettings.DefaultPaymentMethod.ID
	}

	return result
}

/**
 * @description
 * Connected-account operations for landlords: Express account creation,
 * hosted onboarding and dashboard links, status snapshots, payout schedule
 * updates, and payout lookups.
 */
package stripepayment

import (
	"context"

	"github.com/stripe/stripe-go/v74"

	"github.com/happytenant/payment-service/internal/provider"
)

// CreateConnectedAccount opens an Express account with the capabilities
// destination charges need. Stripe hosts identity collection, so only the
// minimal business profile goes in the create call.
func (c *Client) CreateConnectedAccount(ctx context.Context, p provider.AccountParams) (*provider.AccountResult, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(p.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	params.Context = ctx

	if p.BusinessType != "" {
		params.BusinessType = stripe.String(p.BusinessType)
	}
	if p.BusinessName != "" {
		params.BusinessProfile = &stripe.AccountBusinessProfileParams{
			Name: stripe.String(p.BusinessName),
		}
	}

	acct, err := c.Accounts.New(params)
	if err != nil {
		return nil, mapError(err)
	}

	return &provider.AccountResult{ProviderAccountID: acct.ID}, nil
}

// GetOnboardingURL mints a fresh single-use onboarding link. Links expire
// quickly; callers regenerate instead of caching.
func (c *Client) GetOnboardingURL(ctx context.Context, accountID, refreshURL, returnURL string) (*provider.LinkResult, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := c.AccountLinks.New(params)
	if err != nil {
		return nil, mapError(err)
	}

	return &provider.LinkResult{
		URL:       link.URL,
		ExpiresAt: timeFromUnix(link.ExpiresAt),
	}, nil
}

// GetExpressDashboardURL mints a single-use login link into the hosted
// Express dashboard.
func (c *Client) GetExpressDashboardURL(ctx context.Context, accountID string) (*provider.LinkResult, error) {
	params := &stripe.LoginLinkParams{
		Account: stripe.String(accountID),
	}
	params.Context = ctx

	link, err := c.LoginLinks.New(params)
	if err != nil {
		return nil, mapError(err)
	}

	// Login links carry no expiry; the dashboard invalidates them on use.
	return &provider.LinkResult{URL: link.URL}, nil
}

// GetAccountStatus snapshots capabilities and outstanding requirements.
func (c *Client) GetAccountStatus(ctx context.Context, accountID string) (*provider.AccountStatus, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := c.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, mapError(err)
	}

	return accountStatus(acct), nil
}

// UpdatePayoutSchedule sets the payout delay on a connected account. The
// delay is how the trust levels take effect: expedited landlords get the
// shorter window.
func (c *Client) UpdatePayoutSchedule(ctx context.Context, accountID string, delayDays int64) error {
	params := &stripe.AccountParams{
		Settings: &stripe.AccountSettingsParams{
			Payouts: &stripe.AccountSettingsPayoutsParams{
				Schedule: &stripe.AccountSettingsPayoutsScheduleParams{
					DelayDays: stripe.Int64(delayDays),
					Interval:  stripe.String("daily"),
				},
			},
		},
	}
	params.Context = ctx

	if _, err := c.Accounts.Update(accountID, params); err != nil {
		return mapError(err)
	}

	return nil
}

// GetPayout fetches a payout from the connected account's balance, scoping
// the request to that account via the Stripe-Account header.
func (c *Client) GetPayout(ctx context.Context, accountID, payoutID string) (*provider.PayoutResult, error) {
	params := &stripe.PayoutParams{}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	po, err := c.Payouts.Get(payoutID, params)
	if err != nil {
		return nil, mapError(err)
	}

	return payoutResult(po, accountID), nil
}

func accountStatus(acct *stripe.Account) *provider.AccountStatus {
	status := &provider.AccountStatus{
		ProviderAccountID: acct.ID,
		ChargesEnabled:    acct.ChargesEnabled,
		PayoutsEnabled:    acct.PayoutsEnabled,
		DetailsSubmitted:  acct.DetailsSubmitted,
	}

	if acct.Requirements != nil {
		status.CurrentlyDue = acct.Requirements.CurrentlyDue
		status.EventuallyDue = acct.Requirements.EventuallyDue
		status.PastDue = acct.Requirements.PastDue
		status.DisabledReason = string(acct.Requirements.DisabledReason)
	}

	return status
}

func payoutResult(po *stripe.Payout, accountID string) *provider.PayoutResult {
	return &provider.PayoutResult{
		ProviderPayoutID: po.ID,
		AccountID:        accountID,
		Amount:           toDollars(po.Amount),
		Currency:         string(po.Currency),
		Status:           string(po.Status),
		ArrivalDate:      timeFromUnix(po.ArrivalDate),
		FailureCode:      string(po.FailureCode),
		FailureMessage:   po.FailureMessage,
	}
}

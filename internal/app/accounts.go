/**
 * @description
 * Connected-account lifecycle for landlords: open the account, mint
 * onboarding and dashboard links, sync capability status from the
 * processor, and manage the trust level that governs payout speed.
 *
 * @dependencies
 * - context, fmt: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/provider, internal/store.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
	"github.com/happytenant/payment-service/internal/store"
)

// CreateConnectedAccount opens a processor account for a landlord and
// mirrors it locally at the standard trust level.
func (s *Service) CreateConnectedAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.ConnectedAccount, error) {
	result, err := s.provider.CreateConnectedAccount(ctx, provider.AccountParams{
		Email:        req.Email,
		BusinessType: req.BusinessType,
		BusinessName: req.BusinessName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connected account: %w", err)
	}

	account := &domain.ConnectedAccount{
		ID:                uuid.New(),
		LandlordID:        req.LandlordID,
		ProviderAccountID: result.ProviderAccountID,
		BusinessType:      req.BusinessType,
		BusinessName:      req.BusinessName,
		Email:             req.Email,
		TrustLevel:        domain.TrustLevelStandard,
		PayoutDelayDays:   StandardPayoutDelayDays,
	}
	if err := s.repo.CreateConnectedAccount(ctx, account); err != nil {
		log.Printf("CreateConnectedAccount: provider account %s created but local mirror failed: %v", result.ProviderAccountID, err)
		return nil, err
	}

	// New accounts start on the conservative payout window.
	if err := s.provider.UpdatePayoutSchedule(ctx, result.ProviderAccountID, StandardPayoutDelayDays); err != nil {
		log.Printf("CreateConnectedAccount: failed to set initial payout delay on %s: %v", result.ProviderAccountID, err)
	}
	return account, nil
}

// GetConnectedAccount returns the local mirror for a landlord.
func (s *Service) GetConnectedAccount(ctx context.Context, landlordID uuid.UUID) (*domain.ConnectedAccount, error) {
	return s.repo.FindConnectedAccountByLandlordID(ctx, landlordID)
}

// GetOnboardingLink mints a fresh single-use onboarding URL. Expired links
// are never reused; every call generates a new one.
func (s *Service) GetOnboardingLink(ctx context.Context, accountID uuid.UUID) (*provider.LinkResult, error) {
	account, err := s.repo.FindConnectedAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.provider.GetOnboardingURL(ctx, account.ProviderAccountID, s.cfg.OnboardingRefreshURL, s.cfg.OnboardingReturnURL)
}

// GetDashboardLink mints a single-use login link into the hosted dashboard.
func (s *Service) GetDashboardLink(ctx context.Context, accountID uuid.UUID) (*provider.LinkResult, error) {
	account, err := s.repo.FindConnectedAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.provider.GetExpressDashboardURL(ctx, account.ProviderAccountID)
}

// SyncAccountStatus pulls the capability snapshot from the processor and
// mirrors it. Webhooks normally keep the mirror fresh; this is the pull
// path for onboarding return pages and support tooling.
func (s *Service) SyncAccountStatus(ctx context.Context, accountID uuid.UUID) (*domain.ConnectedAccount, error) {
	account, err := s.repo.FindConnectedAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	status, err := s.provider.GetAccountStatus(ctx, account.ProviderAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account status: %w", err)
	}

	if err := s.repo.UpdateConnectedAccountStatus(ctx, account.ProviderAccountID, store.UpdateAccountStatusParams{
		ChargesEnabled:   status.ChargesEnabled,
		PayoutsEnabled:   status.PayoutsEnabled,
		DetailsSubmitted: status.DetailsSubmitted,
		CurrentlyDue:     status.CurrentlyDue,
		EventuallyDue:    status.EventuallyDue,
		PastDue:          status.PastDue,
		DisabledReason:   status.DisabledReason,
	}); err != nil {
		return nil, err
	}

	return s.repo.FindConnectedAccountByID(ctx, accountID)
}

// GetPayout fetches one payout from the processor and mirrors it. Webhooks
// keep payout state fresh; this is the pull path for support tooling.
func (s *Service) GetPayout(ctx context.Context, accountID uuid.UUID, providerPayoutID string) (*domain.Payout, error) {
	account, err := s.repo.FindConnectedAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	result, err := s.provider.GetPayout(ctx, account.ProviderAccountID, providerPayoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payout: %w", err)
	}

	payout := &domain.Payout{
		ID:               uuid.New(),
		ProviderPayoutID: result.ProviderPayoutID,
		AccountID:        result.AccountID,
		Amount:           result.Amount,
		Currency:         result.Currency,
		Status:           result.Status,
		FailureCode:      result.FailureCode,
		FailureMessage:   result.FailureMessage,
	}
	if !result.ArrivalDate.IsZero() {
		arrival := result.ArrivalDate
		payout.ArrivalDate = &arrival
	}
	if err := s.repo.UpsertPayout(ctx, payout); err != nil {
		return nil, err
	}
	return payout, nil
}

// SetTrustLevel switches a landlord's payout speed. Moving to expedited
// shortens the clawback window on disputed charges, so the caller must
// acknowledge that risk explicitly; the request is refused otherwise.
func (s *Service) SetTrustLevel(ctx context.Context, accountID uuid.UUID, req domain.TrustLevelRequest) (*domain.ConnectedAccount, error) {
	account, err := s.repo.FindConnectedAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var delayDays int64
	switch req.TrustLevel {
	case domain.TrustLevelExpedited:
		if !req.RiskAcknowledged {
			return nil, ErrRiskAcknowledgmentRequired
		}
		delayDays = ExpeditedPayoutDelayDays
	case domain.TrustLevelStandard:
		delayDays = StandardPayoutDelayDays
	default:
		return nil, fmt.Errorf("unknown trust level %q", req.TrustLevel)
	}

	if err := s.provider.UpdatePayoutSchedule(ctx, account.ProviderAccountID, delayDays); err != nil {
		return nil, fmt.Errorf("failed to update payout schedule: %w", err)
	}
	if err := s.repo.UpdateTrustLevel(ctx, accountID, req.TrustLevel, delayDays); err != nil {
		return nil, err
	}

	account.TrustLevel = req.TrustLevel
	account.PayoutDelayDays = delayDays
	return account, nil
}

/**
 * @description
 * Connected-account domain model: a landlord's payout destination at the
 * payment processor, with capability flags and outstanding requirement lists
 * mirrored locally so the dashboard can show onboarding progress.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrustLevel controls the payout delay applied to a landlord account.
type TrustLevel string

const (
	TrustLevelStandard  TrustLevel = "standard"
	TrustLevelExpedited TrustLevel = "expedited"
)

// AccountState is derived from the processor capability flags.
type AccountState string

const (
	AccountStateCreated    AccountState = "created"
	AccountStateActive     AccountState = "active"
	AccountStateRestricted AccountState = "restricted"
)

// ConnectedAccount is a landlord's payout account at the processor.
type ConnectedAccount struct {
	ID                uuid.UUID  `json:"id"`
	LandlordID        uuid.UUID  `json:"landlord_id"`
	ProviderAccountID string     `json:"provider_account_id"`
	BusinessType      string     `json:"business_type"`
	BusinessName      string     `json:"business_name,omitempty"`
	Email             string     `json:"email"`
	ChargesEnabled    bool       `json:"charges_enabled"`
	PayoutsEnabled    bool       `json:"payouts_enabled"`
	DetailsSubmitted  bool       `json:"details_submitted"`
	CurrentlyDue      []string   `json:"currently_due,omitempty"`
	EventuallyDue     []string   `json:"eventually_due,omitempty"`
	PastDue           []string   `json:"past_due,omitempty"`
	DisabledReason    string     `json:"disabled_reason,omitempty"`
	TrustLevel        TrustLevel `json:"trust_level"`
	PayoutDelayDays   int64      `json:"payout_delay_days"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// State derives the lifecycle state from the mirrored capability flags.
func (a *ConnectedAccount) State() AccountState {
	if a.DisabledReason != "" {
		return AccountStateRestricted
	}
	if a.ChargesEnabled && a.PayoutsEnabled {
		return AccountStateActive
	}
	return AccountStateCreated
}

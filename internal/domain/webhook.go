package domain

import "time"

// WebhookEvent is the dedup ledger row for processor webhook deliveries.
// The unique constraint on ProviderEventID is the sole idempotency
// mechanism: an event id is processed at most once.
type WebhookEvent struct {
	ProviderEventID string    `json:"provider_event_id"`
	Type            string    `json:"type"`
	ReceivedAt      time.Time `json:"received_at"`
	Status          string    `json:"status"`
}

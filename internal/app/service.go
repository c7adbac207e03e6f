/**
 * @description
 * This file contains the core service struct for the payment application.
 * The `Service` orchestrates money movement between tenants and landlords,
 * coordinating the database repository, the payment provider adapter, and
 * the message broker.
 *
 * @dependencies
 * - errors: Standard Go library.
 * - internal/store, internal/provider: Data access and processor adapter.
 * - pkg/rabbitmq: For publishing payment events.
 */

package app

import (
	"errors"

	"github.com/happytenant/payment-service/internal/provider"
	"github.com/happytenant/payment-service/internal/store"
	"github.com/happytenant/payment-service/pkg/rabbitmq"
)

var (
	ErrInvalidAmount              = errors.New("charge amount must be greater than zero")
	ErrCustomerArchived           = errors.New("customer is archived")
	ErrAccountNotChargeable       = errors.New("destination account cannot accept charges yet")
	ErrPaymentNotRefundable       = errors.New("payment is not in a refundable state")
	ErrRefundExceedsPayment       = errors.New("refund amount exceeds the payment amount")
	ErrRiskAcknowledgmentRequired = errors.New("expedited payouts require an explicit risk acknowledgment")
	ErrInvalidDayOfMonth          = errors.New("day of month must be between 1 and 31")
	ErrMethodNeedsReplacement     = errors.New("payment method is flagged for replacement")
)

// Payout delay applied per trust level, in days.
const (
	StandardPayoutDelayDays  = 7
	ExpeditedPayoutDelayDays = 2
)

// Statement descriptors longer than this are rejected by card networks.
const maxStatementDescriptorLen = 22

// Service provides the core business logic for rent payments.
type Service struct {
	repo     store.Repository
	provider provider.Provider
	producer rabbitmq.Publisher
	cfg      ServiceConfig
	handlers map[string]eventHandler
}

// ServiceConfig carries the tunables the service needs beyond its
// collaborators.
type ServiceConfig struct {
	Currency             string
	FeeMode              FeeMode
	StatementDescriptor  string
	OnboardingRefreshURL string
	OnboardingReturnURL  string
}

// NewService creates a new payment service instance.
func NewService(repo store.Repository, prov provider.Provider, producer rabbitmq.Publisher, cfg ServiceConfig) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.FeeMode == "" {
		cfg.FeeMode = FeeModeLandlordAbsorbs
	}
	s := &Service{
		repo:     repo,
		provider: prov,
		producer: producer,
		cfg:      cfg,
	}
	s.handlers = s.buildHandlerRegistry()
	return s
}

// truncateDescriptor clips a statement descriptor to the network limit,
// counting runes so a multibyte character is never split.
func truncateDescriptor(s string) string {
	runes := []rune(s)
	if len(runes) > maxStatementDescriptorLen {
		return string(runes[:maxStatementDescriptorLen])
	}
	return s
}

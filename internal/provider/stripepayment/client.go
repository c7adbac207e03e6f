/**
 * @description
 * Stripe implementation of the provider contract. The adapter owns every
 * Stripe SDK type: callers see only the provider-agnostic result structs
 * and the semantic error taxonomy.
 */
package stripepayment

import (
	"github.com/stripe/stripe-go/v74/client"

	"github.com/happytenant/payment-service/internal/provider"
)

// Client wraps the Stripe API client with the webhook signing secrets.
type Client struct {
	*client.API
	webhookSecret        string
	connectWebhookSecret string
}

var _ provider.Provider = (*Client)(nil)

func init() {
	provider.Register(provider.KindStripe, func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}

// New builds a Stripe adapter from the provider configuration.
func New(cfg provider.Config) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, &provider.ConfigurationError{Reason: "stripe secret key is required"}
	}

	var api client.API

	api.Init(cfg.SecretKey, nil)

	return &Client{
		API:                  &api,
		webhookSecret:        cfg.WebhookSecret,
		connectWebhookSecret: cfg.ConnectWebhookSecret,
	}, nil
}

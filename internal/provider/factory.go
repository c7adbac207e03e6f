/**
 * @description
 * Process-wide provider factory. Adapters register a constructor for their
 * kind at init time; Initialize builds the configured adapter explicitly,
 * and Get lazily auto-initializes from environment variables on first use.
 * Construction is guarded by a mutex with a double check so concurrent
 * first-callers receive the same single instance.
 */
package provider

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Kind names a processor adapter implementation.
type Kind string

const KindStripe Kind = "stripe"

// Config carries the secrets an adapter needs.
type Config struct {
	SecretKey            string
	WebhookSecret        string
	ConnectWebhookSecret string
}

// Constructor builds an adapter from its configuration.
type Constructor func(cfg Config) (Provider, error)

var (
	mu           sync.Mutex
	constructors = map[Kind]Constructor{}
	instance     Provider
)

// Register makes an adapter constructor available to the factory. Adapters
// call this from init.
func Register(kind Kind, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	constructors[kind] = ctor
}

// Initialize constructs the configured adapter explicitly at startup.
// Calling it again replaces the instance; production code calls it once.
func Initialize(kind Kind, cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	p, err := construct(kind, cfg)
	if err != nil {
		return err
	}

	instance = p

	return nil
}

// Get returns the process-wide provider, lazily constructing it from
// environment configuration if Initialize was never called. It is safe for
// concurrent use and always returns the same instance once initialized.
func Get() (Provider, error) {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance, nil
	}

	kind := Kind(strings.TrimSpace(os.Getenv("PAYMENT_PROVIDER")))
	if kind == "" {
		kind = KindStripe
	}

	cfg := Config{
		SecretKey:            strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		WebhookSecret:        strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		ConnectWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_CONNECT_WEBHOOK_SECRET")),
	}

	p, err := construct(kind, cfg)
	if err != nil {
		return nil, err
	}

	instance = p

	return instance, nil
}

// Reset clears the singleton. Test isolation only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
}

func construct(kind Kind, cfg Config) (Provider, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown payment provider %q", kind)}
	}

	if cfg.SecretKey == "" {
		return nil, &ConfigurationError{Reason: "provider secret key is not configured"}
	}

	return ctor(cfg)
}

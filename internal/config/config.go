/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payment service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	ClerkJWKSURL         string `mapstructure:"CLERK_JWKS_URL"`

	PaymentProvider      string `mapstructure:"PAYMENT_PROVIDER"`
	StripeSecretKey      string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret  string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeConnectSecret  string `mapstructure:"STRIPE_CONNECT_WEBHOOK_SECRET"`
	Currency             string `mapstructure:"PAYMENT_CURRENCY"`
	FeeMode              string `mapstructure:"PLATFORM_FEE_MODE"`
	StatementDescriptor  string `mapstructure:"STATEMENT_DESCRIPTOR"`
	OnboardingRefreshURL string `mapstructure:"ONBOARDING_REFRESH_URL"`
	OnboardingReturnURL  string `mapstructure:"ONBOARDING_RETURN_URL"`

	AutoPayChargeSchedule string `mapstructure:"AUTOPAY_CHARGE_SCHEDULE"`
	AutoPayRetrySchedule  string `mapstructure:"AUTOPAY_RETRY_SCHEDULE"`
	AutoPayWorkerLimit    int    `mapstructure:"AUTOPAY_WORKER_LIMIT"`

	ChargeRateLimitPerMinute int `mapstructure:"CHARGE_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PAYMENT_PROVIDER", "stripe")
	viper.SetDefault("PAYMENT_CURRENCY", "usd")
	viper.SetDefault("PLATFORM_FEE_MODE", "landlord_absorbs")
	viper.SetDefault("STATEMENT_DESCRIPTOR", "HAPPYTENANT RENT")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "payments:rate_limit")
	viper.SetDefault("AUTOPAY_CHARGE_SCHEDULE", "0 14 * * *")
	viper.SetDefault("AUTOPAY_RETRY_SCHEDULE", "30 */4 * * *")
	viper.SetDefault("AUTOPAY_WORKER_LIMIT", 8)
	viper.SetDefault("CHARGE_RATE_LIMIT_PER_MINUTE", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("PAYMENT_PROVIDER")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("STRIPE_CONNECT_WEBHOOK_SECRET")
	_ = viper.BindEnv("PAYMENT_CURRENCY")
	_ = viper.BindEnv("PLATFORM_FEE_MODE")
	_ = viper.BindEnv("STATEMENT_DESCRIPTOR")
	_ = viper.BindEnv("ONBOARDING_REFRESH_URL")
	_ = viper.BindEnv("ONBOARDING_RETURN_URL")
	_ = viper.BindEnv("AUTOPAY_CHARGE_SCHEDULE")
	_ = viper.BindEnv("AUTOPAY_RETRY_SCHEDULE")
	_ = viper.BindEnv("AUTOPAY_WORKER_LIMIT")
	_ = viper.BindEnv("CHARGE_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Platform-injected PORT wins over the configured server port.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.StripeSecretKey = strings.TrimSpace(config.StripeSecretKey)
	config.StripeWebhookSecret = strings.TrimSpace(config.StripeWebhookSecret)
	config.StripeConnectSecret = strings.TrimSpace(config.StripeConnectSecret)

	return config, config.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	switch c.FeeMode {
	case "landlord_absorbs", "tenant_pays", "split":
	default:
		return errors.New("PLATFORM_FEE_MODE must be landlord_absorbs, tenant_pays, or split")
	}
	return nil
}

package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DATABASE_URL", "postgres://localhost:5432/payments")
	setEnvWithCleanup(t, "STRIPE_SECRET_KEY", "sk_test_123")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "PLATFORM_FEE_MODE")
	unsetEnvWithCleanup(t, "AUTOPAY_CHARGE_SCHEDULE")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.FeeMode != "landlord_absorbs" {
		t.Fatalf("expected default fee mode landlord_absorbs, got %q", cfg.FeeMode)
	}
	if cfg.AutoPayChargeSchedule != "0 14 * * *" {
		t.Fatalf("expected default charge schedule, got %q", cfg.AutoPayChargeSchedule)
	}
	if cfg.AutoPayWorkerLimit != 8 {
		t.Fatalf("expected default worker limit 8, got %d", cfg.AutoPayWorkerLimit)
	}
}

func TestLoadConfig_RequiresDatabaseURL(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "DATABASE_URL")
	setEnvWithCleanup(t, "STRIPE_SECRET_KEY", "sk_test_123")

	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("expected an error when DATABASE_URL is missing")
	}
}

func TestLoadConfig_RequiresStripeSecretKey(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DATABASE_URL", "postgres://localhost:5432/payments")
	unsetEnvWithCleanup(t, "STRIPE_SECRET_KEY")

	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("expected an error when STRIPE_SECRET_KEY is missing")
	}
}

func TestLoadConfig_RejectsUnknownFeeMode(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DATABASE_URL", "postgres://localhost:5432/payments")
	setEnvWithCleanup(t, "STRIPE_SECRET_KEY", "sk_test_123")
	setEnvWithCleanup(t, "PLATFORM_FEE_MODE", "everyone_pays")

	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("expected an error for an unknown fee mode")
	}
}

func TestLoadConfig_PlatformPortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DATABASE_URL", "postgres://localhost:5432/payments")
	setEnvWithCleanup(t, "STRIPE_SECRET_KEY", "sk_test_123")
	setEnvWithCleanup(t, "SERVER_PORT", "9000")
	setEnvWithCleanup(t, "PORT", "3000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "3000" {
		t.Fatalf("expected platform PORT to win, got %q", cfg.ServerPort)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeProvider struct {
	Provider

	cfg Config
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, params CustomerParams) (*CustomerResult, error) {
	return &CustomerResult{ProviderCustomerID: "cus_fake"}, nil
}

const kindFake Kind = "fake"

func registerFake(t *testing.T) *int {
	t.Helper()
	constructed := 0
	Register(kindFake, func(cfg Config) (Provider, error) {
		constructed++
		return &fakeProvider{cfg: cfg}, nil
	})
	t.Cleanup(func() {
		Reset()
		mu.Lock()
		delete(constructors, kindFake)
		mu.Unlock()
	})
	return &constructed
}

func TestInitialize_BuildsConfiguredProvider(t *testing.T) {
	registerFake(t)

	if err := Initialize(kindFake, Config{SecretKey: "sk_test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fp, ok := p.(*fakeProvider)
	if !ok {
		t.Fatalf("expected the registered fake provider, got %T", p)
	}
	if fp.cfg.SecretKey != "sk_test" {
		t.Fatalf("expected config to reach the constructor, got %q", fp.cfg.SecretKey)
	}
}

func TestInitialize_UnknownKindFails(t *testing.T) {
	err := Initialize(Kind("nope"), Config{SecretKey: "sk_test"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for unknown provider kind, got %v", err)
	}
}

func TestInitialize_MissingSecretKeyFails(t *testing.T) {
	registerFake(t)

	err := Initialize(kindFake, Config{})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for missing secret, got %v", err)
	}
}

func TestGet_ReturnsSameInstanceConcurrently(t *testing.T) {
	constructed := registerFake(t)
	if err := Initialize(kindFake, Config{SecretKey: "sk_test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const callers = 16
	results := make([]Provider, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := Get()
			if err != nil {
				t.Errorf("Get returned error: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatal("Get must return the same instance to every caller")
		}
	}
	if *constructed != 1 {
		t.Fatalf("expected exactly one construction, got %d", *constructed)
	}
}

func TestReset_ClearsSingleton(t *testing.T) {
	registerFake(t)
	if err := Initialize(kindFake, Config{SecretKey: "sk_test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := Get()

	Reset()
	if err := Initialize(kindFake, Config{SecretKey: "sk_test_2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := Get()

	if first == second {
		t.Fatal("Reset must discard the previous instance")
	}
}

package stripepayment

import (
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v74"

	"github.com/happytenant/payment-service/internal/provider"
)

func TestMapError_InsufficientFundsWinsOverDecline(t *testing.T) {
	err := mapError(&stripe.Error{
		Code:        stripe.ErrorCodeCardDeclined,
		DeclineCode: stripe.DeclineCode("insufficient_funds"),
		Msg:         "Your card has insufficient funds.",
	})
	var insufficient *provider.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %T: %v", err, err)
	}
}

func TestMapError_CardDeclined(t *testing.T) {
	err := mapError(&stripe.Error{
		Code:        stripe.ErrorCodeCardDeclined,
		DeclineCode: stripe.DeclineCode("do_not_honor"),
		Msg:         "Your card was declined.",
	})
	var declined *provider.PaymentDeclinedError
	if !errors.As(err, &declined) {
		t.Fatalf("expected PaymentDeclinedError, got %T: %v", err, err)
	}
	if declined.DeclineCode != "do_not_honor" {
		t.Fatalf("expected the decline code carried over, got %q", declined.DeclineCode)
	}
}

func TestMapError_InvalidMethodCodes(t *testing.T) {
	for _, code := range []stripe.ErrorCode{
		stripe.ErrorCodeExpiredCard,
		stripe.ErrorCodeIncorrectCVC,
		stripe.ErrorCode("bank_account_unverified"),
	} {
		err := mapError(&stripe.Error{Code: code, Msg: "unusable method"})
		var invalid *provider.InvalidPaymentMethodError
		if !errors.As(err, &invalid) {
			t.Errorf("code %q: expected InvalidPaymentMethodError, got %T", code, err)
		}
	}
}

func TestMapError_AccountNotReady(t *testing.T) {
	err := mapError(&stripe.Error{
		Code: stripe.ErrorCode("transfers_not_allowed"),
		Msg:  "The destination account cannot receive transfers yet.",
	})
	var notReady *provider.AccountNotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("expected AccountNotReadyError, got %T: %v", err, err)
	}
}

func TestMapError_UnknownStripeCodeIsProviderError(t *testing.T) {
	err := mapError(&stripe.Error{
		Code: stripe.ErrorCode("rate_limit"),
		Msg:  "Too many requests.",
	})
	var perr *provider.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if perr.Code != "rate_limit" {
		t.Fatalf("expected the Stripe code preserved, got %q", perr.Code)
	}
}

func TestMapError_NonStripeError(t *testing.T) {
	err := mapError(errors.New("connection reset by peer"))
	var perr *provider.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError for a transport failure, got %T: %v", err, err)
	}
}

func TestMapError_NilPassesThrough(t *testing.T) {
	if mapError(nil) != nil {
		t.Fatal("nil must map to nil")
	}
}

/**
 * @description
 * Maps raw Stripe errors onto the semantic taxonomy. This is the only place
 * processor error codes are interpreted; everything past the adapter sees
 * PaymentDeclinedError, InsufficientFundsError, InvalidPaymentMethodError,
 * AccountNotReadyError, or the generic ProviderError.
 */
package stripepayment

import (
	"errors"

	"github.com/stripe/stripe-go/v74"

	"github.com/happytenant/payment-service/internal/provider"
)

const declineCodeInsufficientFunds = "insufficient_funds"

var invalidMethodCodes = map[string]bool{
	"expired_card":                    true,
	"incorrect_cvc":                   true,
	"incorrect_number":                true,
	"invalid_number":                  true,
	"invalid_cvc":                     true,
	"invalid_expiry_month":            true,
	"invalid_expiry_year":             true,
	"payment_method_unactivated":      true,
	"payment_method_unexpected_state": true,
	"bank_account_unusable":           true,
	"bank_account_unverified":         true,
}

var accountNotReadyCodes = map[string]bool{
	"account_invalid":                        true,
	"account_information_mismatch":           true,
	"transfers_not_allowed":                  true,
	"insufficient_capabilities_for_transfer": true,
}

// mapError reclassifies a Stripe failure into the semantic taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return &provider.ProviderError{Code: "unknown", Message: err.Error()}
	}

	code := string(serr.Code)
	declineCode := string(serr.DeclineCode)

	switch {
	case declineCode == declineCodeInsufficientFunds:
		return &provider.InsufficientFundsError{Message: serr.Msg}
	case serr.Code == stripe.ErrorCodeCardDeclined:
		return &provider.PaymentDeclinedError{DeclineCode: declineCode, Message: serr.Msg}
	case serr.Code == stripe.ErrorCodeExpiredCard, serr.Code == stripe.ErrorCodeIncorrectCVC:
		return &provider.InvalidPaymentMethodError{Code: code, Message: serr.Msg}
	case invalidMethodCodes[code]:
		return &provider.InvalidPaymentMethodError{Code: code, Message: serr.Msg}
	case accountNotReadyCodes[code]:
		return &provider.AccountNotReadyError{Reason: serr.Msg}
	default:
		return &provider.ProviderError{Code: code, Message: serr.Msg}
	}
}

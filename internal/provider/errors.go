/**
 * @description
 * Semantic error taxonomy shared by every processor adapter. The adapter is
 * the only place raw processor errors are caught and reclassified; callers
 * branch on these kinds with errors.As/errors.Is, never on processor codes.
 */
package provider

import "fmt"

// ConfigurationError indicates missing or invalid provider configuration.
// It is fatal at startup or on first use, not recoverable by retrying.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("payment provider configuration error: %s", e.Reason)
}

// PaymentDeclinedError means the card or bank declined the charge.
type PaymentDeclinedError struct {
	DeclineCode string
	Message     string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined (%s): %s", e.DeclineCode, e.Message)
}

// InsufficientFundsError is a decline specifically for lack of funds; the
// scheduler treats it as retryable on a later day.
type InsufficientFundsError struct {
	Message string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s", e.Message)
}

// InvalidPaymentMethodError means the method is expired, invalid, or
// unsupported. Retrying the same method is pointless; it must be replaced.
type InvalidPaymentMethodError struct {
	Code    string
	Message string
}

func (e *InvalidPaymentMethodError) Error() string {
	return fmt.Sprintf("invalid payment method (%s): %s", e.Code, e.Message)
}

// AccountNotReadyError means the destination connected account is not
// chargeable, either detected locally before any processor call or reported
// by the processor itself.
type AccountNotReadyError struct {
	AccountID string
	Reason    string
}

func (e *AccountNotReadyError) Error() string {
	return fmt.Sprintf("connected account %s not ready: %s", e.AccountID, e.Reason)
}

// WebhookSignatureError rejects a webhook delivery whose signature does not
// verify. It is never surfaced to a user; the processor redelivers.
type WebhookSignatureError struct {
	Err error
}

func (e *WebhookSignatureError) Error() string {
	return fmt.Sprintf("webhook signature verification failed: %v", e.Err)
}

func (e *WebhookSignatureError) Unwrap() error { return e.Err }

// ProviderError carries an unclassified processor failure with the raw code
// retained for diagnosis.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider error (%s): %s", e.Code, e.Message)
}

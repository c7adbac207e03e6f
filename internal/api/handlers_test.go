package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/happytenant/payment-service/internal/app"
	"github.com/happytenant/payment-service/internal/provider"
	"github.com/happytenant/payment-service/internal/store"
)

func TestWriteChargeError_StatusMapping(t *testing.T) {
	h := &PaymentHandlers{}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid amount", err: app.ErrInvalidAmount, want: http.StatusBadRequest},
		{name: "account not chargeable", err: app.ErrAccountNotChargeable, want: http.StatusConflict},
		{name: "method needs replacement", err: app.ErrMethodNeedsReplacement, want: http.StatusConflict},
		{name: "customer missing", err: store.ErrCustomerNotFound, want: http.StatusNotFound},
		{name: "method missing", err: store.ErrPaymentMethodNotFound, want: http.StatusNotFound},
		{name: "declined", err: &provider.PaymentDeclinedError{DeclineCode: "do_not_honor"}, want: http.StatusPaymentRequired},
		{name: "insufficient funds", err: &provider.InsufficientFundsError{}, want: http.StatusPaymentRequired},
		{name: "invalid method", err: &provider.InvalidPaymentMethodError{Code: "expired_card"}, want: http.StatusPaymentRequired},
		{name: "transport failure", err: errors.New("connection reset"), want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeChargeError(rec, nil, tt.err)
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestWriteChargeError_DeclineIncludesLedgerRow(t *testing.T) {
	h := &PaymentHandlers{}
	rec := httptest.NewRecorder()

	h.writeChargeError(rec, map[string]string{"status": "failed"}, &provider.PaymentDeclinedError{DeclineCode: "do_not_honor"})

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := body["payment"]; !ok {
		t.Fatal("a declined charge response must include the failed ledger row")
	}
}

func TestWriteError_SetsJSONContentType(t *testing.T) {
	h := &PaymentHandlers{}
	rec := httptest.NewRecorder()

	h.writeError(rec, http.StatusNotFound, "Payment not found")
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %q", got)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["error"] != "Payment not found" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

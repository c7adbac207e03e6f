/**
 * @description
 * Charge, payment-history, and refund endpoints.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/happytenant/payment-service/internal/app"
	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
	"github.com/happytenant/payment-service/internal/store"
)

// CreateChargeHandler submits a one-time rent charge.
func (h *PaymentHandlers) CreateChargeHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.allowCharge(w, r, req.CustomerID.String()) {
		return
	}

	payment, err := h.service.ProcessCharge(r.Context(), req)
	if err != nil {
		h.writeChargeError(w, payment, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, payment)
}

// GetPaymentHandler returns one ledger row, refreshed when in flight.
func (h *PaymentHandlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := h.urlUUID(w, r, "paymentID")
	if !ok {
		return
	}
	payment, err := h.service.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			h.writeError(w, http.StatusNotFound, "Payment not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to load payment")
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

// ListPaymentsHandler returns a customer's payment history.
func (h *PaymentHandlers) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.urlUUID(w, r, "customerID")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.service.ListPayments(r.Context(), customerID, limit, offset)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list payments")
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	h.writeJSON(w, http.StatusOK, payments)
}

// RefundPaymentHandler reverses part or all of a succeeded payment.
func (h *PaymentHandlers) RefundPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := h.urlUUID(w, r, "paymentID")
	if !ok {
		return
	}
	var req domain.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	refund, err := h.service.RefundPayment(r.Context(), paymentID, req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPaymentNotFound):
			h.writeError(w, http.StatusNotFound, "Payment not found")
		case errors.Is(err, app.ErrPaymentNotRefundable):
			h.writeError(w, http.StatusConflict, "Payment is not refundable")
		case errors.Is(err, app.ErrRefundExceedsPayment):
			h.writeError(w, http.StatusBadRequest, "Refund amount exceeds payment amount")
		default:
			log.Printf("level=error component=api msg=\"refund failed\" payment_id=%s err=%v", paymentID, err)
			h.writeError(w, http.StatusBadGateway, "Refund failed")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, refund)
}

// allowCharge enforces the per-customer charge rate limit.
func (h *PaymentHandlers) allowCharge(w http.ResponseWriter, r *http.Request, subject string) bool {
	if h.limiter == nil || h.chargeRateLimit <= 0 {
		return true
	}
	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), "charge", subject, h.chargeRateLimit, time.Minute)
	if err != nil {
		// Fail open: a Redis outage must not block rent payments.
		log.Printf("level=warn component=api msg=\"rate limiter unavailable, allowing request\" err=%v", err)
		return true
	}
	if count > h.chargeRateLimit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many charge attempts; try again shortly")
		return false
	}
	return true
}

// writeChargeError maps the provider error taxonomy onto HTTP statuses. A
// declined charge still produced a ledger row, which is included so the
// client can show the failure.
func (h *PaymentHandlers) writeChargeError(w http.ResponseWriter, payment interface{}, err error) {
	var declined *provider.PaymentDeclinedError
	var insufficient *provider.InsufficientFundsError
	var invalid *provider.InvalidPaymentMethodError

	switch {
	case errors.Is(err, app.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, "Charge amount must be greater than zero")
	case errors.Is(err, app.ErrAccountNotChargeable):
		h.writeError(w, http.StatusConflict, "Landlord account cannot accept charges yet")
	case errors.Is(err, app.ErrMethodNeedsReplacement):
		h.writeError(w, http.StatusConflict, "Payment method must be replaced before charging")
	case errors.Is(err, store.ErrCustomerNotFound), errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrPaymentMethodNotFound):
		h.writeError(w, http.StatusNotFound, "Customer, payment method, or destination account not found")
	case errors.As(err, &declined), errors.As(err, &insufficient), errors.As(err, &invalid):
		h.writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":   fmt.Sprintf("Charge declined: %v", err),
			"payment": payment,
		})
	default:
		log.Printf("level=error component=api msg=\"charge failed\" err=%v", err)
		h.writeError(w, http.StatusBadGateway, "Charge failed")
	}
}

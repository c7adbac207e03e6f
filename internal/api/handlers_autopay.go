/**
 * @description
 * AutoPay endpoints: configure, inspect, and disable a lease's recurring
 * rent charge.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/happytenant/payment-service/internal/app"
	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/store"
)

// ConfigureAutoPayHandler creates or updates a lease's recurring charge.
func (h *PaymentHandlers) ConfigureAutoPayHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.AutoPayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	schedule, err := h.service.ConfigureAutoPay(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidDayOfMonth):
			h.writeError(w, http.StatusBadRequest, "day_of_month must be between 1 and 31")
		case errors.Is(err, app.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, "rent_amount must be greater than zero")
		case errors.Is(err, app.ErrMethodNeedsReplacement):
			h.writeError(w, http.StatusConflict, "Payment method must be replaced first")
		case errors.Is(err, app.ErrAccountNotChargeable):
			h.writeError(w, http.StatusConflict, "Landlord account cannot accept charges yet")
		case errors.Is(err, store.ErrPaymentMethodNotFound), errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Payment method or destination account not found")
		default:
			log.Printf("level=error component=api msg=\"autopay configuration failed\" err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Failed to configure autopay")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, schedule)
}

// GetAutoPayHandler returns the schedule for a lease.
func (h *PaymentHandlers) GetAutoPayHandler(w http.ResponseWriter, r *http.Request) {
	leaseID, ok := h.urlUUID(w, r, "leaseID")
	if !ok {
		return
	}
	schedule, err := h.service.GetAutoPaySchedule(r.Context(), leaseID)
	if err != nil {
		if errors.Is(err, store.ErrScheduleNotFound) {
			h.writeError(w, http.StatusNotFound, "No autopay schedule for lease")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to load autopay schedule")
		return
	}
	h.writeJSON(w, http.StatusOK, schedule)
}

// DisableAutoPayHandler turns a schedule off.
func (h *PaymentHandlers) DisableAutoPayHandler(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := h.urlUUID(w, r, "scheduleID")
	if !ok {
		return
	}
	if err := h.service.DisableAutoPay(r.Context(), scheduleID); err != nil {
		if errors.Is(err, store.ErrScheduleNotFound) {
			h.writeError(w, http.StatusNotFound, "Autopay schedule not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to disable autopay")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

/**
 * @description
 * This file contains the HTTP handlers for the payment service's customer
 * and payment-method endpoints, plus the response helpers shared by every
 * handler file. Handlers parse requests, call the application service, and
 * map service errors onto HTTP statuses.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/happytenant/payment-service/internal/app"
	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/store"
)

// RateLimiter is the slice of the Redis limiter the handlers need.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// PaymentHandlers holds the application service that handlers will use.
type PaymentHandlers struct {
	service         *app.Service
	limiter         RateLimiter
	chargeRateLimit int
}

// NewPaymentHandlers creates the handler set. The limiter may be nil, which
// disables rate limiting.
func NewPaymentHandlers(service *app.Service, limiter RateLimiter, chargeRateLimit int) *PaymentHandlers {
	return &PaymentHandlers{
		service:         service,
		limiter:         limiter,
		chargeRateLimit: chargeRateLimit,
	}
}

func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// urlUUID extracts and parses a UUID path parameter, writing a 400 on failure.
func (h *PaymentHandlers) urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// CreateCustomerHandler registers a tenant with the payment processor.
func (h *PaymentHandlers) CreateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "email and name are required")
		return
	}

	customer, err := h.service.RegisterCustomer(r.Context(), req)
	if err != nil {
		log.Printf("level=error component=api msg=\"customer registration failed\" err=%v", err)
		h.writeError(w, http.StatusBadGateway, "Failed to register customer")
		return
	}
	h.writeJSON(w, http.StatusCreated, customer)
}

// GetCustomerHandler returns the local mirror of a customer.
func (h *PaymentHandlers) GetCustomerHandler(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.urlUUID(w, r, "customerID")
	if !ok {
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			h.writeError(w, http.StatusNotFound, "Customer not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to load customer")
		return
	}
	h.writeJSON(w, http.StatusOK, customer)
}

// UpdateCustomerHandler pushes identity changes to the processor.
func (h *PaymentHandlers) UpdateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.urlUUID(w, r, "customerID")
	if !ok {
		return
	}
	var req domain.CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	customer, err := h.service.UpdateCustomer(r.Context(), customerID, req)
	if err != nil {
		h.writeCustomerError(w, err, "Failed to update customer")
		return
	}
	h.writeJSON(w, http.StatusOK, customer)
}

// ArchiveCustomerHandler soft-deletes a customer.
func (h *PaymentHandlers) ArchiveCustomerHandler(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.urlUUID(w, r, "customerID")
	if !ok {
		return
	}
	if err := h.service.ArchiveCustomer(r.Context(), customerID); err != nil {
		h.writeCustomerError(w, err, "Failed to archive customer")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// CreateSetupSessionHandler opens a card/wallet collection session.
func (h *PaymentHandlers) CreateSetupSessionHandler(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.urlUUID(w, r, "customerID")
	if !ok {
		return
	}
	session, err := h.service.CreateSetupSession(r.Context(), customerID)
	if err != nil {
		h.writeCustomerError(w, err, "Failed to create setup session")
		return
	}
	h.writeJSON(w, http.StatusCreated, session)
}

// CreateBankLinkSessionHandler opens a bank-account linking session.
func (h *PaymentHandlers) CreateBankLinkSessionHandler(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.urlUUID(w, r, "customerID")
	if !ok {
		return
	}
	session, err := h.service.CreateBankLinkSession(r.Context(), customerID)
	if err != nil {
		h.writeCustomerError(w, err, "Failed to create bank link session")
		return
	}
	h.writeJSON(w, http.StatusCreated, session)
}

// AttachPaymentMethodHandler attaches a collected method to a customer.
func (h *PaymentHandlers) AttachPaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.urlUUID(w, r, "customerID")
	if !ok {
		return
	}
	var req struct {
		PaymentMethodID string `json:"payment_method_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentMethodID == "" {
		h.writeError(w, http.StatusBadRequest, "payment_method_id is required")
		return
	}

	method, err := h.service.AttachPaymentMethod(r.Context(), customerID, req.PaymentMethodID)
	if err != nil {
		h.writeCustomerError(w, err, "Failed to attach payment method")
		return
	}
	h.writeJSON(w, http.StatusCreated, method)
}

// ListPaymentMethodsHandler returns a customer's mirrored methods.
func (h *PaymentHandlers) ListPaymentMethodsHandler(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.urlUUID(w, r, "customerID")
	if !ok {
		return
	}
	methods, err := h.service.ListPaymentMethods(r.Context(), customerID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list payment methods")
		return
	}
	if methods == nil {
		methods = []domain.PaymentMethod{}
	}
	h.writeJSON(w, http.StatusOK, methods)
}

// SetDefaultPaymentMethodHandler flips the customer's default method.
func (h *PaymentHandlers) SetDefaultPaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.urlUUID(w, r, "customerID")
	if !ok {
		return
	}
	var req struct {
		PaymentMethodID string `json:"payment_method_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentMethodID == "" {
		h.writeError(w, http.StatusBadRequest, "payment_method_id is required")
		return
	}

	if err := h.service.SetDefaultPaymentMethod(r.Context(), customerID, req.PaymentMethodID); err != nil {
		if errors.Is(err, store.ErrPaymentMethodNotFound) {
			h.writeError(w, http.StatusNotFound, "Payment method not found")
			return
		}
		h.writeCustomerError(w, err, "Failed to set default payment method")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DetachPaymentMethodHandler removes a method.
func (h *PaymentHandlers) DetachPaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	methodID := chi.URLParam(r, "methodID")
	if methodID == "" {
		h.writeError(w, http.StatusBadRequest, "methodID is required")
		return
	}
	if err := h.service.DetachPaymentMethod(r.Context(), methodID); err != nil {
		if errors.Is(err, store.ErrPaymentMethodNotFound) {
			h.writeError(w, http.StatusNotFound, "Payment method not found")
			return
		}
		h.writeError(w, http.StatusBadGateway, "Failed to detach payment method")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "detached"})
}

func (h *PaymentHandlers) writeCustomerError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrCustomerNotFound):
		h.writeError(w, http.StatusNotFound, "Customer not found")
	case errors.Is(err, app.ErrCustomerArchived):
		h.writeError(w, http.StatusConflict, "Customer is archived")
	default:
		log.Printf("level=error component=api msg=\"%s\" err=%v", fallback, err)
		h.writeError(w, http.StatusInternalServerError, fallback)
	}
}

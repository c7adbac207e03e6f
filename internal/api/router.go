/**
 * @description
 * This file sets up the HTTP router for the payment service. It defines the
 * API endpoints, associates them with their handlers, and applies
 * middleware. Webhook routes sit outside the authenticated group: their
 * signature check is the authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the dashboard origins.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// PaymentRoutes creates and returns a new router for the payment service.
func PaymentRoutes(h *PaymentHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Webhook ingestion is authenticated by signature, not JWT.
	r.Post("/webhooks/stripe", h.PlatformWebhookHandler)
	r.Post("/webhooks/stripe/connect", h.ConnectWebhookHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(ClerkAuthMiddleware(jwksURL))

		// Customers and payment methods
		r.Post("/customers", h.CreateCustomerHandler)
		r.Get("/customers/{customerID}", h.GetCustomerHandler)
		r.Put("/customers/{customerID}", h.UpdateCustomerHandler)
		r.Delete("/customers/{customerID}", h.ArchiveCustomerHandler)
		r.Post("/customers/{customerID}/setup-session", h.CreateSetupSessionHandler)
		r.Post("/customers/{customerID}/bank-link-session", h.CreateBankLinkSessionHandler)
		r.Post("/customers/{customerID}/payment-methods", h.AttachPaymentMethodHandler)
		r.Get("/customers/{customerID}/payment-methods", h.ListPaymentMethodsHandler)
		r.Put("/customers/{customerID}/payment-methods/default", h.SetDefaultPaymentMethodHandler)
		r.Delete("/payment-methods/{methodID}", h.DetachPaymentMethodHandler)

		// Charges, history, refunds
		r.Post("/charges", h.CreateChargeHandler)
		r.Get("/payments/{paymentID}", h.GetPaymentHandler)
		r.Get("/customers/{customerID}/payments", h.ListPaymentsHandler)
		r.Post("/payments/{paymentID}/refund", h.RefundPaymentHandler)

		// Connected accounts
		r.Post("/accounts", h.CreateAccountHandler)
		r.Get("/accounts/landlord/{landlordID}", h.GetAccountHandler)
		r.Post("/accounts/{accountID}/onboarding-link", h.OnboardingLinkHandler)
		r.Post("/accounts/{accountID}/dashboard-link", h.DashboardLinkHandler)
		r.Post("/accounts/{accountID}/sync", h.SyncAccountHandler)
		r.Put("/accounts/{accountID}/trust-level", h.SetTrustLevelHandler)
		r.Get("/accounts/{accountID}/payouts/{payoutID}", h.GetPayoutHandler)

		// AutoPay
		r.Post("/autopay", h.ConfigureAutoPayHandler)
		r.Get("/autopay/lease/{leaseID}", h.GetAutoPayHandler)
		r.Delete("/autopay/{scheduleID}", h.DisableAutoPayHandler)
	})

	return r
}

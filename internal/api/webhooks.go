/**
 * @description
 * Webhook ingestion endpoints. These are unauthenticated by design; the
 * signature in the Stripe-Signature header is the authentication. A bad
 * signature is a 400 and never processed; handler failures return 500 so
 * the processor redelivers; everything else, including duplicates and
 * unknown event types, is acked with 200.
 */

package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/happytenant/payment-service/internal/provider"
)

// Stripe payloads are small; cap reads well above the largest event.
const maxWebhookBodyBytes = 1 << 16

// PlatformWebhookHandler ingests events signed with the platform secret.
func (h *PaymentHandlers) PlatformWebhookHandler(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, false)
}

// ConnectWebhookHandler ingests Connect events signed with the Connect secret.
func (h *PaymentHandlers) ConnectWebhookHandler(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, true)
}

func (h *PaymentHandlers) handleWebhook(w http.ResponseWriter, r *http.Request, connect bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"), connect)
	if err != nil {
		var sigErr *provider.WebhookSignatureError
		if errors.As(err, &sigErr) {
			log.Printf("level=warn component=api msg=\"webhook signature rejected\" connect=%v err=%v", connect, err)
			h.writeError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
		log.Printf("level=error component=api msg=\"webhook processing failed\" connect=%v err=%v", connect, err)
		h.writeError(w, http.StatusInternalServerError, "Event processing failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}

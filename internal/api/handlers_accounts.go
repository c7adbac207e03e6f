/**
 * @description
 * Connected-account endpoints: open a landlord account, mint onboarding and
 * dashboard links, sync capability status, and switch trust levels.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/happytenant/payment-service/internal/app"
	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/store"
)

// CreateAccountHandler opens a connected account for a landlord.
func (h *PaymentHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	account, err := h.service.CreateConnectedAccount(r.Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrAccountExists) {
			h.writeError(w, http.StatusConflict, "Landlord already has a connected account")
			return
		}
		log.Printf("level=error component=api msg=\"account creation failed\" err=%v", err)
		h.writeError(w, http.StatusBadGateway, "Failed to create connected account")
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// GetAccountHandler returns the mirror for a landlord.
func (h *PaymentHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	landlordID, ok := h.urlUUID(w, r, "landlordID")
	if !ok {
		return
	}
	account, err := h.service.GetConnectedAccount(r.Context(), landlordID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Connected account not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to load connected account")
		return
	}
	h.writeJSON(w, http.StatusOK, accountResponse(account))
}

// OnboardingLinkHandler mints a fresh single-use onboarding URL.
func (h *PaymentHandlers) OnboardingLinkHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.urlUUID(w, r, "accountID")
	if !ok {
		return
	}
	link, err := h.service.GetOnboardingLink(r.Context(), accountID)
	if err != nil {
		h.writeAccountError(w, err, "Failed to create onboarding link")
		return
	}
	h.writeJSON(w, http.StatusCreated, link)
}

// DashboardLinkHandler mints a single-use dashboard login URL.
func (h *PaymentHandlers) DashboardLinkHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.urlUUID(w, r, "accountID")
	if !ok {
		return
	}
	link, err := h.service.GetDashboardLink(r.Context(), accountID)
	if err != nil {
		h.writeAccountError(w, err, "Failed to create dashboard link")
		return
	}
	h.writeJSON(w, http.StatusCreated, link)
}

// SyncAccountHandler pulls the capability snapshot from the processor.
func (h *PaymentHandlers) SyncAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.urlUUID(w, r, "accountID")
	if !ok {
		return
	}
	account, err := h.service.SyncAccountStatus(r.Context(), accountID)
	if err != nil {
		h.writeAccountError(w, err, "Failed to sync account status")
		return
	}
	h.writeJSON(w, http.StatusOK, accountResponse(account))
}

// SetTrustLevelHandler switches a landlord's payout speed.
func (h *PaymentHandlers) SetTrustLevelHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.urlUUID(w, r, "accountID")
	if !ok {
		return
	}
	var req domain.TrustLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.SetTrustLevel(r.Context(), accountID, req)
	if err != nil {
		if errors.Is(err, app.ErrRiskAcknowledgmentRequired) {
			h.writeError(w, http.StatusUnprocessableEntity, "Expedited payouts require risk_acknowledged to be true")
			return
		}
		h.writeAccountError(w, err, "Failed to update trust level")
		return
	}
	h.writeJSON(w, http.StatusOK, accountResponse(account))
}

// GetPayoutHandler fetches one payout from the processor and mirrors it.
func (h *PaymentHandlers) GetPayoutHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.urlUUID(w, r, "accountID")
	if !ok {
		return
	}
	payoutID := chi.URLParam(r, "payoutID")
	if payoutID == "" {
		h.writeError(w, http.StatusBadRequest, "payoutID is required")
		return
	}

	payout, err := h.service.GetPayout(r.Context(), accountID, payoutID)
	if err != nil {
		h.writeAccountError(w, err, "Failed to load payout")
		return
	}
	h.writeJSON(w, http.StatusOK, payout)
}

func (h *PaymentHandlers) writeAccountError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, store.ErrAccountNotFound) {
		h.writeError(w, http.StatusNotFound, "Connected account not found")
		return
	}
	log.Printf("level=error component=api msg=\"%s\" err=%v", fallback, err)
	h.writeError(w, http.StatusBadGateway, fallback)
}

// accountResponse augments the mirror with the derived lifecycle state.
func accountResponse(account *domain.ConnectedAccount) map[string]interface{} {
	return map[string]interface{}{
		"account": account,
		"state":   account.State(),
	}
}

/**
 * @description
 * HTTP handlers for settlement payments: initiation, lookup and the
 * redirect-flow verification fallback.
 */
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/waspershola/hospitech-nexus-sub003/internal/app"
)

func (h *Handler) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	var params app.InitiatePaymentParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := h.service.InitiatePayment(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		http.Error(w, "Payment reference is required", http.StatusBadRequest)
		return
	}

	payment, err := h.service.GetPaymentByReference(r.Context(), reference)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payment)
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		http.Error(w, "Payment reference is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.VerifyPaymentByReference(r.Context(), reference)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// handleVerifyRedirect is the provider redirect landing. Providers name the
// reference query parameter differently (Paystack appends trxref, Flutterwave
// tx_ref), and the status they put in the query string is never trusted: the
// outcome comes from an authenticated lookup against the provider.
func (h *Handler) handleVerifyRedirect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	reference := query.Get("reference")
	if reference == "" {
		reference = query.Get("trxref")
	}
	if reference == "" {
		reference = query.Get("tx_ref")
	}
	if reference == "" {
		http.Error(w, "Payment reference is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.VerifyPaymentByReference(r.Context(), reference)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

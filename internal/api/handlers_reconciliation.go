/**
 * @description
 * HTTP handlers for reconciliation: CSV statement import, manual and
 * automatic matching, provider sync and the tenant summary.
 */
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

func (h *Handler) handleImportStatement(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.service.ImportCSV(r.Context(), tenantID, r.Body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleManualMatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RecordID  uuid.UUID `json:"record_id"`
		PaymentID uuid.UUID `json:"payment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.service.ManualMatch(r.Context(), body.RecordID, body.PaymentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, record)
}

func (h *Handler) handleAutoMatch(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.service.AutoMatch(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleProviderSync(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Provider domain.Provider `json:"provider"`
		From     time.Time       `json:"from"`
		To       time.Time       `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.ProviderSync(r.Context(), tenantID, body.Provider, body.From, body.To)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleReconciliationSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetReconciliationSummary(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListUnmatched(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}

	records, err := h.service.ListUnmatchedRecords(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

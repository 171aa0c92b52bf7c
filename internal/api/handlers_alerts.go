/**
 * @description
 * HTTP handlers for revenue alert rules and materialized alerts.
 */
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

func (h *Handler) handleSaveAlertRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SaveAlertRule(r.Context(), &rule); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var tenantID *uuid.UUID
	if raw := query.Get("tenant_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
			return
		}
		tenantID = &parsed
	}

	unacknowledgedOnly := query.Get("unacknowledged") == "true"

	limit := 100
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	alerts, err := h.service.ListAlerts(r.Context(), tenantID, unacknowledgedOnly, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	acknowledged, err := h.service.AcknowledgeAlert(r.Context(), alertID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !acknowledged {
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

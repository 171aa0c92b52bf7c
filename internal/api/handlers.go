/**
 * @description
 * HTTP handlers for fee configuration, fee charging and the ledger.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/app"
	"github.com/waspershola/hospitech-nexus-sub003/internal/config"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
	"github.com/waspershola/hospitech-nexus-sub003/internal/store"
)

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service *app.Service
	cfg     config.Config
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service *app.Service, cfg config.Config) *Handler {
	return &Handler{service: service, cfg: cfg}
}

func (h *Handler) handleChargeFee(w http.ResponseWriter, r *http.Request) {
	var params app.FeeChargeParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.RecordTransactionFee(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleQuoteFee(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID   uuid.UUID               `json:"tenant_id"`
		Class      domain.TransactionClass `json:"transaction_class"`
		BaseAmount int64                   `json:"base_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quote, err := h.service.QuoteFee(r.Context(), body.TenantID, body.Class, body.BaseAmount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleGetFeeConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}

	cfg, err := h.service.GetFeeConfig(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleSaveFeeConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}

	var cfg domain.FeeConfiguration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cfg.TenantID = tenantID

	if err := h.service.SaveFeeConfig(r.Context(), &cfg); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleListLedger(w http.ResponseWriter, r *http.Request) {
	filter, ok := ledgerFilterFromQuery(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListLedger(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleLedgerSummary(w http.ResponseWriter, r *http.Request) {
	filter, ok := ledgerFilterFromQuery(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetLedgerSummary(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleWaiveFees(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LedgerIDs []uuid.UUID `json:"ledger_ids"`
		Reason    string      `json:"reason"`
		Notes     *string     `json:"notes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.WaiveFees(r.Context(), body.LedgerIDs, body.Reason, body.Notes); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"waived": len(body.LedgerIDs)})
}

func (h *Handler) handleRunDeferredBilling(w http.ResponseWriter, r *http.Request) {
	promoted, err := h.service.RunDeferredBilling(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"promoted": promoted})
}

func (h *Handler) handleRunAlertEvaluation(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.EvaluateAlertRules(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func tenantIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return tenantID, true
}

func ledgerFilterFromQuery(w http.ResponseWriter, r *http.Request) (store.LedgerFilter, bool) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return store.LedgerFilter{}, false
	}

	filter := store.LedgerFilter{TenantID: tenantID, Limit: 100}
	query := r.URL.Query()

	if raw := query.Get("status"); raw != "" {
		status := domain.LedgerStatus(raw)
		filter.Status = &status
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid 'from' timestamp", http.StatusBadRequest)
			return store.LedgerFilter{}, false
		}
		filter.From = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid 'to' timestamp", http.StatusBadRequest)
			return store.LedgerFilter{}, false
		}
		filter.To = &to
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return store.LedgerFilter{}, false
		}
		filter.Limit = limit
	}
	return filter, true
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *domain.ValidationError
	var stateErr *domain.InvalidStateError

	switch {
	case errors.As(err, &validationErr):
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": validationErr.Error()})
	case errors.As(err, &stateErr):
		respondWithJSON(w, http.StatusConflict, map[string]string{"error": stateErr.Error()})
	case errors.Is(err, store.ErrFeeConfigNotFound),
		errors.Is(err, store.ErrPaymentNotFound),
		errors.Is(err, store.ErrLedgerNotFound),
		errors.Is(err, store.ErrRecordNotFound),
		errors.Is(err, store.ErrDisputeNotFound),
		errors.Is(err, store.ErrRuleNotFound):
		respondWithJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrPaymentLinked), errors.Is(err, app.ErrAutoMatchRunning):
		respondWithJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("Error handling %s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

/**
 * @description
 * HTTP router setup for the fee ledger service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers fee ledger routes.
func NewRouter(h *Handler, jwksURL string, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Fee ledger service is healthy"))
	})

	// Webhooks authenticate by signature, not by JWT or internal key.
	r.Post("/webhooks/payments", h.handleProviderWebhook)

	// Redirect landings arrive from the guest's browser without a JWT; the
	// outcome comes from a server-to-server provider lookup, never the query.
	r.Get("/payments/verify", h.handleVerifyRedirect)

	r.Route("/internal/fees", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/charges", h.handleChargeFee)
		r.Post("/quote", h.handleQuoteFee)
		r.Post("/billing/run", h.handleRunDeferredBilling)
		r.Post("/alerts/run", h.handleRunAlertEvaluation)
	})

	r.Group(func(r chi.Router) {
		r.Use(ClerkAuthMiddleware(jwksURL))

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Get("/fee-config", h.handleGetFeeConfig)
			r.Put("/fee-config", h.handleSaveFeeConfig)
			r.Get("/ledger", h.handleListLedger)
			r.Get("/ledger/summary", h.handleLedgerSummary)
			r.Get("/disputes", h.handleListDisputes)
			r.Post("/reconciliation/import", h.handleImportStatement)
			r.Post("/reconciliation/auto-match", h.handleAutoMatch)
			r.Post("/reconciliation/sync", h.handleProviderSync)
			r.Get("/reconciliation/summary", h.handleReconciliationSummary)
			r.Get("/reconciliation/unmatched", h.handleListUnmatched)
		})

		r.Post("/ledger/waive", h.handleWaiveFees)

		r.Post("/disputes", h.handleCreateDispute)
		r.Post("/disputes/{id}/resolve", h.handleResolveDispute)

		r.Post("/payments/initiate", h.handleInitiatePayment)
		r.Get("/payments/{reference}", h.handleGetPayment)
		r.Post("/payments/{reference}/verify", h.handleVerifyPayment)

		r.Post("/reconciliation/match", h.handleManualMatch)

		r.Post("/alerts/rules", h.handleSaveAlertRule)
		r.Get("/alerts", h.handleListAlerts)
		r.Post("/alerts/{id}/acknowledge", h.handleAcknowledgeAlert)
	})

	return r
}

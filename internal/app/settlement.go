/**
 * @description
 * Payment settlement processing. Verified webhook events and manual
 * verification calls land here; the processor resolves the payment by its
 * reference, applies the terminal outcome to the payment and its covered
 * ledger entries atomically, and is a no-op under redelivery.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
	"github.com/waspershola/hospitech-nexus-sub003/internal/store"
)

// ErrEventNotTerminal marks webhook events that carry no settlement outcome.
// They are acknowledged without touching payment or ledger state.
var ErrEventNotTerminal = errors.New("event carries no terminal payment status")

// SettlementResult reports what processing one event did.
type SettlementResult struct {
	Payment *domain.PlatformPayment `json:"payment"`
	Applied bool                    `json:"applied"`
	Outcome domain.PaymentStatus    `json:"outcome"`
}

// InitiatePaymentParams opens a settlement attempt for a batch of fees.
type InitiatePaymentParams struct {
	TenantID        uuid.UUID       `json:"tenant_id"`
	LedgerIDs       []uuid.UUID     `json:"ledger_ids"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id,omitempty"`
	Provider        domain.Provider `json:"provider"`
	TotalAmount     int64           `json:"total_amount"`
}

// InitiatePayment creates a PlatformPayment covering the given open ledger
// entries. The total must equal the sum of the covered fee amounts; the
// payment reference is locally generated and unique.
func (s *Service) InitiatePayment(ctx context.Context, params InitiatePaymentParams) (*domain.PlatformPayment, error) {
	if len(params.LedgerIDs) == 0 {
		return nil, &domain.ValidationError{Field: "ledger_ids", Reason: "at least one entry is required"}
	}
	switch params.Provider {
	case domain.ProviderPaystack, domain.ProviderStripe, domain.ProviderFlutterwave:
	default:
		return nil, &domain.ValidationError{Field: "provider", Reason: "unsupported payment provider"}
	}

	reference := fmt.Sprintf("PF-%s", strings.ToUpper(uuid.NewString()[:12]))
	return s.repo.CreatePayment(ctx, store.CreatePaymentParams{
		TenantID:         params.TenantID,
		PaymentMethodID:  params.PaymentMethodID,
		PaymentReference: reference,
		Provider:         params.Provider,
		TotalAmount:      params.TotalAmount,
		LedgerIDs:        params.LedgerIDs,
	})
}

// ProcessProviderEvent applies a verified, terminal provider event to the
// payment it references.
//
// Idempotency: redelivering an event for an already-terminal payment with
// the same outcome is treated as success and changes nothing. A conflicting
// outcome for a terminal payment is logged and left alone; the stored state
// is authoritative and disagreements are resolved by reconciliation.
func (s *Service) ProcessProviderEvent(ctx context.Context, evt *domain.ProviderEvent) (*SettlementResult, error) {
	if evt == nil || !evt.Terminal {
		return nil, ErrEventNotTerminal
	}
	if evt.Reference == "" {
		return nil, &domain.ValidationError{Field: "reference", Reason: "event carries no payment reference"}
	}
	return s.finalize(ctx, evt.Reference, evt.Succeeded, evt.Raw, nil, evt.DegradedTrust)
}

// VerifyPaymentByReference is the redirect-flow fallback: instead of
// trusting query parameters, it performs an authenticated status lookup
// against the provider named on the payment and settles from that answer.
func (s *Service) VerifyPaymentByReference(ctx context.Context, reference string) (*SettlementResult, error) {
	payment, err := s.repo.FindPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if payment.Status.Terminal() {
		return &SettlementResult{Payment: payment, Applied: false, Outcome: payment.Status}, nil
	}

	providerTx, err := s.providers.VerifyTransaction(ctx, payment.Provider, reference)
	if err != nil {
		return nil, fmt.Errorf("provider verification failed for %s: %w", reference, err)
	}

	switch strings.ToLower(providerTx.Status) {
	case "success", "successful", "succeeded":
		return s.finalize(ctx, reference, true, nil, nil, false)
	case "failed", "declined", "abandoned":
		reason := fmt.Sprintf("provider reported status %q", providerTx.Status)
		return s.finalize(ctx, reference, false, nil, &reason, false)
	default:
		// Still in flight at the provider. Record progress, settle later.
		if err := s.repo.MarkPaymentProcessing(ctx, reference); err != nil {
			return nil, err
		}
		payment, err = s.repo.FindPaymentByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		return &SettlementResult{Payment: payment, Applied: false, Outcome: payment.Status}, nil
	}
}

func (s *Service) finalize(ctx context.Context, reference string, succeeded bool, providerResponse []byte, failureReason *string, degradedTrust bool) (*SettlementResult, error) {
	outcome := domain.PaymentFailed
	if succeeded {
		outcome = domain.PaymentSuccessful
	}

	result, err := s.repo.FinalizePayment(ctx, store.FinalizePaymentParams{
		PaymentReference: reference,
		Succeeded:        succeeded,
		ProviderResponse: providerResponse,
		FailureReason:    failureReason,
		DegradedTrust:    degradedTrust,
		Now:              s.now(),
	})
	if err != nil {
		return nil, err
	}

	if !result.Claimed {
		if result.Payment.Status == outcome {
			// Duplicate delivery of an outcome we already applied.
			return &SettlementResult{Payment: result.Payment, Applied: false, Outcome: result.Payment.Status}, nil
		}
		log.Printf("WARN: conflicting terminal outcome for payment %s: stored %s, reported %s",
			reference, result.Payment.Status, outcome)
		return &SettlementResult{Payment: result.Payment, Applied: false, Outcome: result.Payment.Status}, nil
	}

	return &SettlementResult{Payment: result.Payment, Applied: true, Outcome: result.Payment.Status}, nil
}

// GetPaymentByReference exposes payment state to the API layer.
func (s *Service) GetPaymentByReference(ctx context.Context, reference string) (*domain.PlatformPayment, error) {
	return s.repo.FindPaymentByReference(ctx, reference)
}

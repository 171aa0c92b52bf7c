/**
 * @description
 * Core business logic for the platform fee ledger. The `Service` struct
 * coordinates fee evaluation, ledger posting, waivers and summaries between
 * the database repository, the tenant directory and the message outbox.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
	"github.com/waspershola/hospitech-nexus-sub003/internal/store"
	"github.com/waspershola/hospitech-nexus-sub003/pkg/providerclient"
	"github.com/waspershola/hospitech-nexus-sub003/pkg/tenantclient"
)

// TenantDirectory resolves tenant trial and contact details.
type TenantDirectory interface {
	GetTenant(ctx context.Context, tenantID uuid.UUID) (*tenantclient.Tenant, error)
}

// ProviderGateway performs authenticated server-to-server calls against a
// payment provider: status lookups for manual verification and transaction
// listings for reconciliation sync.
type ProviderGateway interface {
	VerifyTransaction(ctx context.Context, provider domain.Provider, reference string) (*providerclient.Transaction, error)
	ListTransactions(ctx context.Context, provider domain.Provider, start, end time.Time) ([]providerclient.Transaction, error)
}

// TenantLocker provides per-tenant mutual exclusion for jobs that must not
// run concurrently with themselves, such as auto-match.
type TenantLocker interface {
	Acquire(ctx context.Context, scope string, tenantID uuid.UUID, ttl time.Duration) (release func(), acquired bool, err error)
}

// Service provides the core business logic for the fee ledger.
type Service struct {
	repo      store.Repository
	tenants   TenantDirectory
	providers ProviderGateway
	locker    TenantLocker
	now       func() time.Time
}

// NewService creates a new fee ledger service.
func NewService(repo store.Repository, tenants TenantDirectory, providers ProviderGateway, locker TenantLocker) *Service {
	return &Service{
		repo:      repo,
		tenants:   tenants,
		providers: providers,
		locker:    locker,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FeeChargeParams identifies the billable guest transaction a fee is
// computed for.
type FeeChargeParams struct {
	TenantID      uuid.UUID               `json:"tenant_id"`
	ReferenceType domain.ReferenceType    `json:"reference_type"`
	ReferenceID   uuid.UUID               `json:"reference_id"`
	Class         domain.TransactionClass `json:"transaction_class"`
	BaseAmount    int64                   `json:"base_amount"`
}

// FeeChargeResult is returned synchronously so the caller can present the
// guest-facing total immediately.
type FeeChargeResult struct {
	Quote domain.FeeQuote     `json:"quote"`
	Entry *domain.LedgerEntry `json:"ledger_entry,omitempty"`
}

// RecordTransactionFee evaluates the tenant's fee configuration against a
// billable transaction and, when a fee applies, posts the ledger entry.
// Posting is idempotent per (reference_type, reference_id): re-invoking for
// the same transaction returns the previously posted entry.
func (s *Service) RecordTransactionFee(ctx context.Context, params FeeChargeParams) (*FeeChargeResult, error) {
	if params.BaseAmount < 0 {
		return nil, &domain.ValidationError{Field: "base_amount", Reason: "must not be negative"}
	}
	if params.ReferenceID == uuid.Nil {
		return nil, &domain.ValidationError{Field: "reference_id", Reason: "is required"}
	}

	cfg, err := s.repo.GetActiveFeeConfig(ctx, params.TenantID)
	if err != nil {
		if errors.Is(err, store.ErrFeeConfigNotFound) {
			return &FeeChargeResult{Quote: domain.FeeQuote{TotalAmount: params.BaseAmount}}, nil
		}
		return nil, err
	}

	s.fillTrialWindow(ctx, cfg)

	quote := domain.ComputeFee(*cfg, params.Class, params.BaseAmount, s.now())
	if !quote.Applied {
		return &FeeChargeResult{Quote: quote}, nil
	}

	now := s.now()
	entry := &domain.LedgerEntry{
		TenantID:      params.TenantID,
		ReferenceType: params.ReferenceType,
		ReferenceID:   params.ReferenceID,
		BaseAmount:    params.BaseAmount,
		FeeAmount:     quote.FeeAmount,
		Rate:          quote.Rate,
		FeeType:       cfg.FeeType,
		BillingCycle:  cfg.BillingCycle,
		Payer:         cfg.Payer,
		Status:        domain.InitialStatus(cfg.BillingCycle),
	}
	if entry.Status == domain.LedgerBilled {
		entry.BilledAt = &now
	}

	if err := s.repo.InsertLedgerEntry(ctx, entry); err != nil {
		if errors.Is(err, store.ErrDuplicateFee) {
			existing, findErr := s.repo.FindLedgerEntryByReference(ctx, params.ReferenceType, params.ReferenceID)
			if findErr != nil {
				return nil, findErr
			}
			return &FeeChargeResult{Quote: quote, Entry: existing}, nil
		}
		return nil, err
	}

	return &FeeChargeResult{Quote: quote, Entry: entry}, nil
}

// fillTrialWindow resolves the tenant's trial dates from the tenant
// directory when the configuration doesn't carry them. A failed lookup is
// logged and fees are charged; the trial window is a tenant benefit, not a
// billing precondition.
func (s *Service) fillTrialWindow(ctx context.Context, cfg *domain.FeeConfiguration) {
	if !cfg.TrialExemptionEnabled || cfg.TrialEndDate != nil || !cfg.TenantCreatedAt.IsZero() {
		return
	}
	tenant, err := s.tenants.GetTenant(ctx, cfg.TenantID)
	if err != nil {
		log.Printf("WARN: tenant lookup failed for %s, trial exemption not applied: %v", cfg.TenantID, err)
		return
	}
	cfg.TenantCreatedAt = tenant.CreatedAt
	cfg.TrialEndDate = tenant.TrialEndDate
}

// QuoteFee evaluates a fee without posting anything.
func (s *Service) QuoteFee(ctx context.Context, tenantID uuid.UUID, class domain.TransactionClass, baseAmount int64) (*domain.FeeQuote, error) {
	cfg, err := s.repo.GetActiveFeeConfig(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrFeeConfigNotFound) {
			return &domain.FeeQuote{TotalAmount: baseAmount}, nil
		}
		return nil, err
	}
	s.fillTrialWindow(ctx, cfg)
	quote := domain.ComputeFee(*cfg, class, baseAmount, s.now())
	return &quote, nil
}

// GetFeeConfig returns the tenant's active fee configuration.
func (s *Service) GetFeeConfig(ctx context.Context, tenantID uuid.UUID) (*domain.FeeConfiguration, error) {
	return s.repo.GetActiveFeeConfig(ctx, tenantID)
}

// SaveFeeConfig validates and writes a tenant fee configuration.
func (s *Service) SaveFeeConfig(ctx context.Context, cfg *domain.FeeConfiguration) error {
	switch cfg.FeeType {
	case domain.FeeTypePercentage, domain.FeeTypeFlat:
	default:
		return &domain.ValidationError{Field: "fee_type", Reason: "must be percentage or flat"}
	}
	switch cfg.Payer {
	case domain.PayerGuest, domain.PayerProperty:
	default:
		return &domain.ValidationError{Field: "payer", Reason: "must be guest or property"}
	}
	switch cfg.BillingCycle {
	case domain.BillingRealtime, domain.BillingDeferred:
	default:
		return &domain.ValidationError{Field: "billing_cycle", Reason: "must be realtime or deferred"}
	}
	if cfg.BookingFee < 0 || cfg.QRFee < 0 {
		return &domain.ValidationError{Field: "fee", Reason: "rates must not be negative"}
	}
	if cfg.FeeType == domain.FeeTypePercentage && (cfg.BookingFee > 100 || cfg.QRFee > 100) {
		return &domain.ValidationError{Field: "fee", Reason: "percentage rate must not exceed 100"}
	}
	return s.repo.UpsertFeeConfig(ctx, cfg)
}

// ListLedger lists a tenant's ledger entries.
func (s *Service) ListLedger(ctx context.Context, filter store.LedgerFilter) ([]domain.LedgerEntry, error) {
	return s.repo.ListLedgerEntries(ctx, filter)
}

// GetLedgerSummary recomputes the tenant's billing totals from the ledger
// rows at call time.
func (s *Service) GetLedgerSummary(ctx context.Context, filter store.LedgerFilter) (*domain.LedgerSummary, error) {
	return s.repo.GetLedgerSummary(ctx, filter)
}

// WaiveFees is the direct administrative waiver path. The reason is shown to
// the tenant and is mandatory; a blank reason is rejected before any state
// change. The batch is all-or-nothing.
func (s *Service) WaiveFees(ctx context.Context, ledgerIDs []uuid.UUID, reason string, notes *string) error {
	if len(ledgerIDs) == 0 {
		return &domain.ValidationError{Field: "ledger_ids", Reason: "at least one entry is required"}
	}
	if strings.TrimSpace(reason) == "" {
		return &domain.ValidationError{Field: "reason", Reason: "a waiver reason is required"}
	}
	return s.repo.WaiveLedgerEntries(ctx, ledgerIDs, reason, notes, s.now())
}

// RunDeferredBilling promotes accumulated deferred fees to billed. Invoked
// by the scheduler at period close. The billing run event is best-effort:
// the promotion is already committed when it is enqueued.
func (s *Service) RunDeferredBilling(ctx context.Context) (int64, error) {
	now := s.now()
	promoted, err := s.repo.PromoteDeferredEntries(ctx, now, now)
	if err != nil {
		return 0, err
	}
	if promoted > 0 {
		log.Printf("deferred billing run promoted %d ledger entries to billed", promoted)
		payload, err := json.Marshal(domain.FeesBilledEvent{
			EntriesBilled: promoted,
			Cutoff:        now,
			BilledAt:      now,
		})
		if err != nil {
			return promoted, err
		}
		if err := s.repo.EnqueueOutbox(ctx, domain.EventsExchange, domain.RouteFeesBilled, payload); err != nil {
			log.Printf("WARN: failed to enqueue billing run event: %v", err)
		}
	}
	return promoted, nil
}

/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the fee ledger service needs. Keeping an interface here decouples
 * the business logic in `internal/app` from the PostgreSQL implementation
 * and lets service tests run against hand-rolled mocks.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

var (
	ErrFeeConfigNotFound = errors.New("fee configuration not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrLedgerNotFound    = errors.New("ledger entry not found")
	ErrRecordNotFound    = errors.New("reconciliation record not found")
	ErrDisputeNotFound   = errors.New("dispute not found")
	ErrRuleNotFound      = errors.New("alert rule not found")
	ErrPaymentLinked     = errors.New("payment already linked to a reconciliation record")
	ErrRecordMatched     = errors.New("reconciliation record already matched")
	ErrDuplicateFee      = errors.New("fee already posted for this transaction")
)

// LedgerFilter narrows ledger listings and summaries.
type LedgerFilter struct {
	TenantID uuid.UUID
	Status   *domain.LedgerStatus
	From     *time.Time
	To       *time.Time
	Limit    int
}

// CreatePaymentParams carries everything needed to open a settlement attempt.
type CreatePaymentParams struct {
	TenantID         uuid.UUID
	PaymentMethodID  *uuid.UUID
	PaymentReference string
	Provider         domain.Provider
	TotalAmount      int64
	LedgerIDs        []uuid.UUID
}

// FinalizePaymentParams drives the settlement transaction: the payment row is
// claimed with a conditional update and the covered ledger entries move with
// it in the same database transaction, alongside audit and outbox rows.
type FinalizePaymentParams struct {
	PaymentReference string
	Succeeded        bool
	ProviderResponse []byte
	FailureReason    *string
	// DegradedTrust marks a webhook outcome accepted without signature
	// verification because no secret was configured for the provider. An
	// extra audit row commits with the settlement when set.
	DegradedTrust bool
	Now           time.Time
}

// FinalizePaymentResult reports what the settlement transaction did. When
// Claimed is false the payment was already terminal and nothing changed.
type FinalizePaymentResult struct {
	Payment *domain.PlatformPayment
	Claimed bool
}

// OutboxMessage is one pending event row awaiting publication.
type OutboxMessage struct {
	ID         int64
	Exchange   string
	RoutingKey string
	Payload    []byte
	Attempts   int
	CreatedAt  time.Time
}

// AuditEvent is one append-only audit trail row.
type AuditEvent struct {
	TenantID   uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Detail     []byte
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Fee configuration
	GetActiveFeeConfig(ctx context.Context, tenantID uuid.UUID) (*domain.FeeConfiguration, error)
	UpsertFeeConfig(ctx context.Context, cfg *domain.FeeConfiguration) error

	// Ledger
	InsertLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error
	FindLedgerEntry(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	FindLedgerEntryByReference(ctx context.Context, refType domain.ReferenceType, refID uuid.UUID) (*domain.LedgerEntry, error)
	FindLedgerEntries(ctx context.Context, ids []uuid.UUID) ([]domain.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, filter LedgerFilter) ([]domain.LedgerEntry, error)
	GetLedgerSummary(ctx context.Context, filter LedgerFilter) (*domain.LedgerSummary, error)
	WaiveLedgerEntries(ctx context.Context, ids []uuid.UUID, reason string, notes *string, now time.Time) error
	PromoteDeferredEntries(ctx context.Context, before time.Time, now time.Time) (int64, error)

	// Payments
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*domain.PlatformPayment, error)
	FindPaymentByReference(ctx context.Context, reference string) (*domain.PlatformPayment, error)
	MarkPaymentProcessing(ctx context.Context, reference string) error
	FinalizePayment(ctx context.Context, params FinalizePaymentParams) (*FinalizePaymentResult, error)

	// Disputes
	CreateDispute(ctx context.Context, dispute *domain.Dispute) error
	FindDispute(ctx context.Context, id uuid.UUID) (*domain.Dispute, error)
	ListDisputesByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.Dispute, error)
	ResolveDispute(ctx context.Context, id uuid.UUID, status domain.DisputeStatus, notes string, resolvedBy string, now time.Time) (*domain.Dispute, error)

	// Reconciliation
	InsertReconciliationRecord(ctx context.Context, record *domain.ReconciliationRecord) error
	UpsertProviderRecord(ctx context.Context, record *domain.ReconciliationRecord) error
	FindReconciliationRecord(ctx context.Context, id uuid.UUID) (*domain.ReconciliationRecord, error)
	ListUnmatchedRecords(ctx context.Context, tenantID uuid.UUID) ([]domain.ReconciliationRecord, error)
	FindCandidatePayments(ctx context.Context, tenantID uuid.UUID, amount int64, epsilon int64) ([]domain.PlatformPayment, error)
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*domain.PlatformPayment, error)
	LinkRecordToPayment(ctx context.Context, recordID, paymentID uuid.UUID, status domain.ReconciliationStatus, now time.Time) error
	GetReconciliationSummary(ctx context.Context, tenantID uuid.UUID) (*domain.ReconciliationSummary, error)

	// Alerts
	ListActiveAlertRules(ctx context.Context) ([]domain.AlertRule, error)
	UpsertAlertRule(ctx context.Context, rule *domain.AlertRule) error
	SettledAmountForPeriod(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (int64, error)
	OutstandingAmountAt(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error)
	ListBilledTenantIDs(ctx context.Context, start, end time.Time) ([]uuid.UUID, error)
	InsertAlert(ctx context.Context, alert *domain.Alert) error
	ListAlerts(ctx context.Context, tenantID *uuid.UUID, unacknowledgedOnly bool, limit int) ([]domain.Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID uuid.UUID) (bool, error)

	// Outbox and audit
	EnqueueOutbox(ctx context.Context, exchange, routingKey string, payload []byte) error
	ClaimOutboxMessages(ctx context.Context, batchSize int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, lastError string) error
	InsertAuditEvent(ctx context.Context, event AuditEvent) error
}

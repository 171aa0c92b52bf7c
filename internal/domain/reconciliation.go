/**
 * @description
 * Reconciliation record model: externally observed provider transactions that
 * get matched against internally recorded platform payments. Records have a
 * lifecycle independent of the fee ledger.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationStatus is the match state of an external record.
type ReconciliationStatus string

const (
	ReconUnmatched ReconciliationStatus = "unmatched"
	ReconMatched   ReconciliationStatus = "matched"
	ReconPartial   ReconciliationStatus = "partial"
	ReconOverpaid  ReconciliationStatus = "overpaid"
)

// ReconSourceCSV marks records ingested from a CSV statement upload. Records
// ingested by provider sync carry the provider name as their source.
const ReconSourceCSV = "csv"

// AmountEpsilon is the tolerance, in minor units, within which an external
// amount and an internal payment amount are considered equal.
const AmountEpsilon int64 = 1

// ReconciliationRecord is one externally reported transaction.
type ReconciliationRecord struct {
	ID               uuid.UUID            `json:"id"`
	TenantID         uuid.UUID            `json:"tenant_id"`
	Reference        string               `json:"reference"`
	Amount           int64                `json:"amount"`
	TransactionDate  *time.Time           `json:"transaction_date,omitempty"`
	Source           string               `json:"source"`
	Status           ReconciliationStatus `json:"status"`
	MatchedPaymentID *uuid.UUID           `json:"matched_payment_id,omitempty"`
	ReconciledAt     *time.Time           `json:"reconciled_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

// MatchOutcome classifies an external record amount against an internal
// payment amount: equal within epsilon is matched, internal short of external
// is partial, internal above external is overpaid.
func MatchOutcome(externalAmount, internalAmount int64) ReconciliationStatus {
	diff := internalAmount - externalAmount
	if diff < 0 {
		diff = -diff
	}
	if diff <= AmountEpsilon {
		return ReconMatched
	}
	if internalAmount < externalAmount {
		return ReconPartial
	}
	return ReconOverpaid
}

// ReconciliationSummary reports the match rate over a tenant's records.
type ReconciliationSummary struct {
	Total     int64   `json:"total"`
	Matched   int64   `json:"matched"`
	Partial   int64   `json:"partial"`
	Overpaid  int64   `json:"overpaid"`
	Unmatched int64   `json:"unmatched"`
	MatchRate float64 `json:"match_rate"`
}

// ComputeMatchRate returns matched/total as a percentage, defined as 0 when
// there are no records at all.
func ComputeMatchRate(matched, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total) * 100
}

// CSVRowError reports a single rejected row during CSV import. Row failures
// never abort the rest of the import.
type CSVRowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// CSVImportResult summarizes a CSV statement import.
type CSVImportResult struct {
	Imported int           `json:"imported"`
	Rejected []CSVRowError `json:"rejected,omitempty"`
}

// AutoMatchResult summarizes an auto-match run.
type AutoMatchResult struct {
	Evaluated int `json:"evaluated"`
	Matched   int `json:"matched"`
	Skipped   int `json:"skipped"`
}

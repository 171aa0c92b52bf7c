/**
 * @description
 * Dispute model for tenant-raised challenges against open fee ledger entries.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestedAction is what the tenant asks for when raising a dispute.
type RequestedAction string

const (
	ActionWaive  RequestedAction = "waive"
	ActionReduce RequestedAction = "reduce"
	ActionReview RequestedAction = "review"
)

// DisputeStatus tracks dispute resolution. Resolution itself is an
// administrative action; the workflow records the audit trail.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeApproved DisputeStatus = "approved"
	DisputeRejected DisputeStatus = "rejected"
)

// Dispute targets a set of open ledger entries. Disputes can only be raised
// against pending or billed entries; the reason is shown to the tenant.
type Dispute struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	LedgerIDs       []uuid.UUID     `json:"ledger_ids"`
	DisputeReason   string          `json:"dispute_reason"`
	RequestedAction RequestedAction `json:"requested_action"`
	RequestedAmount *int64          `json:"requested_amount,omitempty"`
	Status          DisputeStatus   `json:"status"`
	ResolutionNotes *string         `json:"resolution_notes,omitempty"`
	ResolvedBy      *string         `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

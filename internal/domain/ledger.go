/**
 * @description
 * Ledger entry model and the fee ledger state machine. Ledger entries are
 * append-only facts: terminal entries are never mutated or deleted.
 */
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LedgerStatus is the lifecycle state of a fee ledger entry.
type LedgerStatus string

const (
	LedgerPending LedgerStatus = "pending"
	LedgerBilled  LedgerStatus = "billed"
	LedgerSettled LedgerStatus = "settled"
	LedgerFailed  LedgerStatus = "failed"
	LedgerWaived  LedgerStatus = "waived"
)

// ReferenceType identifies the billable transaction a ledger entry charges.
type ReferenceType string

const (
	ReferenceBooking   ReferenceType = "booking"
	ReferenceQRPayment ReferenceType = "qr_payment"
)

// LedgerEntry records a single platform fee obligation. Entries in pending or
// billed state are open; settled and waived are terminal. A failed entry is
// closed to waivers but stays collectible: the fee is retried via a new
// payment covering the same entry, not a new entry.
type LedgerEntry struct {
	ID            uuid.UUID     `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	ReferenceType ReferenceType `json:"reference_type"`
	ReferenceID   uuid.UUID     `json:"reference_id"`
	BaseAmount    int64         `json:"base_amount"`
	FeeAmount     int64         `json:"fee_amount"`
	Rate          float64       `json:"rate"`
	FeeType       FeeType       `json:"fee_type"`
	BillingCycle  BillingCycle  `json:"billing_cycle"`
	Payer         FeePayer      `json:"payer"`
	Status        LedgerStatus  `json:"status"`
	PaymentID     *uuid.UUID    `json:"payment_id,omitempty"`
	WaivedReason  *string       `json:"waived_reason,omitempty"`
	ApprovalNotes *string       `json:"approval_notes,omitempty"`
	BilledAt      *time.Time    `json:"billed_at,omitempty"`
	SettledAt     *time.Time    `json:"settled_at,omitempty"`
	FailedAt      *time.Time    `json:"failed_at,omitempty"`
	WaivedAt      *time.Time    `json:"waived_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Open reports whether the entry can still change state.
func (s LedgerStatus) Open() bool {
	return s == LedgerPending || s == LedgerBilled
}

// Collectible reports whether a new settlement attempt may cover the entry.
// Failed entries remain collectible so a declined charge can be retried.
func (s LedgerStatus) Collectible() bool {
	return s.Open() || s == LedgerFailed
}

// Terminal reports whether the entry has reached a final state.
func (s LedgerStatus) Terminal() bool {
	return s == LedgerSettled || s == LedgerFailed || s == LedgerWaived
}

// InitialStatus returns the status a new entry is created in: realtime fees
// are billed immediately, deferred fees accumulate as pending.
func InitialStatus(cycle BillingCycle) LedgerStatus {
	if cycle == BillingRealtime {
		return LedgerBilled
	}
	return LedgerPending
}

// LedgerSummary is an on-demand fold over a tenant's ledger entries.
// Outstanding covers pending and billed entries.
type LedgerSummary struct {
	TotalFees         int64 `json:"total_fees"`
	OutstandingAmount int64 `json:"outstanding_amount"`
	SettledAmount     int64 `json:"settled_amount"`
	FailedAmount      int64 `json:"failed_amount"`
	WaivedAmount      int64 `json:"waived_amount"`
	EntryCount        int64 `json:"entry_count"`
}

// InvalidStateError reports ledger entries that are not in an eligible state
// for a requested batch transition. Batch transitions are all-or-nothing: a
// single offending entry fails the whole call with no partial application.
type InvalidStateError struct {
	Requested LedgerStatus
	EntryIDs  []uuid.UUID
}

func (e *InvalidStateError) Error() string {
	ids := make([]string, len(e.EntryIDs))
	for i, id := range e.EntryIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("cannot transition to %s: entries not eligible: %s", e.Requested, strings.Join(ids, ", "))
}

// ValidationError is a synchronous input rejection with enough detail for the
// caller to correct the request. No state changes when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

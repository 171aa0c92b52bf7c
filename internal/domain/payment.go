/**
 * @description
 * Platform payment model. A payment is one settlement attempt covering a
 * batch of outstanding ledger entries.
 */
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a platform payment.
type PaymentStatus string

const (
	PaymentInitiated  PaymentStatus = "initiated"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
)

// Terminal reports whether the payment has reached a final state.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccessful || s == PaymentFailed
}

// PlatformPayment is a single settlement attempt against a set of ledger
// entries. The sum of the covered entries' fee amounts must equal TotalAmount
// at creation time. PaymentReference is unique and is the key webhooks and
// manual verification resolve against.
type PlatformPayment struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	PaymentMethodID  *uuid.UUID      `json:"payment_method_id,omitempty"`
	PaymentReference string          `json:"payment_reference"`
	TotalAmount      int64           `json:"total_amount"`
	Provider         Provider        `json:"provider"`
	Status           PaymentStatus   `json:"status"`
	LedgerIDs        []uuid.UUID     `json:"ledger_ids"`
	ProviderResponse json.RawMessage `json:"provider_response,omitempty"`
	FailureReason    *string         `json:"failure_reason,omitempty"`
	SettledAt        *time.Time      `json:"settled_at,omitempty"`
	FailedAt         *time.Time      `json:"failed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

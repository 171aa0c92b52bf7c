/**
 * @description
 * Fee configuration model and the pure fee evaluator. Fee computation has no
 * side effects; posting the resulting ledger entry is the caller's job.
 */
package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// FeeType determines how the configured rate is interpreted.
type FeeType string

const (
	FeeTypePercentage FeeType = "percentage"
	FeeTypeFlat       FeeType = "flat"
)

// FeePayer determines who absorbs the platform fee.
type FeePayer string

const (
	PayerGuest    FeePayer = "guest"
	PayerProperty FeePayer = "property"
)

// BillingCycle determines whether fees are due immediately or accumulated.
type BillingCycle string

const (
	BillingRealtime BillingCycle = "realtime"
	BillingDeferred BillingCycle = "deferred"
)

// TransactionClass identifies the kind of billable guest transaction.
type TransactionClass string

const (
	ClassQRPayments TransactionClass = "qr_payments"
	ClassBookings   TransactionClass = "bookings"
)

// FeeConfiguration is the active platform fee setup for a tenant property.
// At most one active configuration per tenant is honored at evaluation time.
type FeeConfiguration struct {
	ID                    uuid.UUID          `json:"id"`
	TenantID              uuid.UUID          `json:"tenant_id"`
	FeeType               FeeType            `json:"fee_type"`
	BookingFee            float64            `json:"booking_fee"`
	QRFee                 float64            `json:"qr_fee"`
	Payer                 FeePayer           `json:"payer"`
	BillingCycle          BillingCycle       `json:"billing_cycle"`
	AppliesTo             []TransactionClass `json:"applies_to"`
	TrialExemptionEnabled bool               `json:"trial_exemption_enabled"`
	TrialDays             int                `json:"trial_days"`
	TrialEndDate          *time.Time         `json:"trial_end_date,omitempty"`
	Active                bool               `json:"active"`
	TenantCreatedAt       time.Time          `json:"tenant_created_at"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// FeeQuote is the result of evaluating a fee configuration against a
// transaction. Amounts are in minor currency units (kobo).
type FeeQuote struct {
	Applied     bool    `json:"applied"`
	FeeAmount   int64   `json:"fee_amount"`
	TotalAmount int64   `json:"total_amount"`
	Rate        float64 `json:"rate"`
	FeeType     FeeType `json:"fee_type"`
}

// TrialEnd returns the end of the tenant's trial window: the explicit end date
// when configured, otherwise tenant creation plus the configured trial days.
func (c FeeConfiguration) TrialEnd() time.Time {
	if c.TrialEndDate != nil {
		return *c.TrialEndDate
	}
	return c.TenantCreatedAt.AddDate(0, 0, c.TrialDays)
}

// InTrial reports whether the tenant is exempt from fees at the given instant.
func (c FeeConfiguration) InTrial(now time.Time) bool {
	return c.TrialExemptionEnabled && now.Before(c.TrialEnd())
}

// RateFor returns the configured rate (or flat amount) for a transaction class.
func (c FeeConfiguration) RateFor(class TransactionClass) float64 {
	switch class {
	case ClassBookings:
		return c.BookingFee
	default:
		return c.QRFee
	}
}

func (c FeeConfiguration) appliesTo(class TransactionClass) bool {
	for _, applied := range c.AppliesTo {
		if applied == class {
			return true
		}
	}
	return false
}

// ComputeFee evaluates a fee configuration against a single billable
// transaction. It never mutates state; the caller posts the ledger entry
// keyed by (reference_type, reference_id) to prevent duplicate fees.
//
// Percentage fees are computed with integer basis-point arithmetic. When the
// exact fee lands on a whole minor unit the result is exact, so doubling the
// base amount doubles the fee; a sub-unit remainder rounds half up. Flat fees
// charge the configured amount regardless of base. When the guest pays, the
// fee is added on top of the base; when the property absorbs it, the
// guest-facing total is unchanged and the property nets base minus fee.
func ComputeFee(cfg FeeConfiguration, class TransactionClass, baseAmount int64, now time.Time) FeeQuote {
	quote := FeeQuote{TotalAmount: baseAmount, FeeType: cfg.FeeType}

	if baseAmount <= 0 || !cfg.appliesTo(class) || cfg.InTrial(now) {
		return quote
	}

	rate := cfg.RateFor(class)
	if rate <= 0 {
		return quote
	}

	var fee int64
	switch cfg.FeeType {
	case FeeTypeFlat:
		fee = int64(math.Round(rate))
	default:
		basisPoints := int64(math.Round(rate * 100))
		fee = (baseAmount*basisPoints + 5000) / 10000
	}

	quote.Applied = true
	quote.FeeAmount = fee
	quote.Rate = rate
	if cfg.Payer == PayerGuest {
		quote.TotalAmount = baseAmount + fee
	}
	return quote
}

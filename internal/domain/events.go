/**
 * @description
 * Internal event payloads published through the outbox to RabbitMQ. The
 * settlement transaction writes these as outbox rows; a dispatcher publishes
 * them with its own retry policy so notification and receipt side effects
 * never block or roll back a financial state change.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventsExchange is the topic exchange all fee ledger events fan out on.
const EventsExchange = "hospitech.events"

// Routing keys for fee ledger events.
const (
	RoutePaymentSettled = "platform_fee.settled"
	RoutePaymentFailed  = "platform_fee.payment_failed"
	RouteFeesWaived     = "platform_fee.waived"
	RouteFeesBilled     = "platform_fee.billed"
	RouteReceiptRequest = "receipts.generate"
	RouteRevenueAlert   = "revenue.alert"
)

// PaymentSettledEvent announces a successful settlement. Consumed by the
// notification worker (tenant email/SMS) and the receipt generator.
type PaymentSettledEvent struct {
	TenantID         uuid.UUID   `json:"tenant_id"`
	PaymentID        uuid.UUID   `json:"payment_id"`
	PaymentReference string      `json:"payment_reference"`
	Provider         Provider    `json:"provider"`
	Amount           int64       `json:"amount"`
	LedgerIDs        []uuid.UUID `json:"ledger_ids"`
	SettledAt        time.Time   `json:"settled_at"`
}

// PaymentFailedEvent announces a failed settlement attempt with retry
// guidance for the tenant-facing notification.
type PaymentFailedEvent struct {
	TenantID         uuid.UUID   `json:"tenant_id"`
	PaymentID        uuid.UUID   `json:"payment_id"`
	PaymentReference string      `json:"payment_reference"`
	Provider         Provider    `json:"provider"`
	Amount           int64       `json:"amount"`
	LedgerIDs        []uuid.UUID `json:"ledger_ids"`
	FailureReason    string      `json:"failure_reason"`
	Retryable        bool        `json:"retryable"`
	FailedAt         time.Time   `json:"failed_at"`
}

// FeesWaivedEvent announces an administrative waiver. The reason is shown to
// the tenant, so it is always populated.
type FeesWaivedEvent struct {
	TenantID     uuid.UUID   `json:"tenant_id"`
	LedgerIDs    []uuid.UUID `json:"ledger_ids"`
	WaivedAmount int64       `json:"waived_amount"`
	Reason       string      `json:"reason"`
	WaivedAt     time.Time   `json:"waived_at"`
}

// FeesBilledEvent announces a deferred billing run that promoted accumulated
// pending fees to billed.
type FeesBilledEvent struct {
	EntriesBilled int64     `json:"entries_billed"`
	Cutoff        time.Time `json:"cutoff"`
	BilledAt      time.Time `json:"billed_at"`
}

// ReceiptRequestEvent asks the receipt generator for a settlement receipt. It
// is enqueued alongside PaymentSettledEvent in the settlement transaction.
type ReceiptRequestEvent struct {
	TenantID         uuid.UUID   `json:"tenant_id"`
	PaymentID        uuid.UUID   `json:"payment_id"`
	PaymentReference string      `json:"payment_reference"`
	Amount           int64       `json:"amount"`
	LedgerIDs        []uuid.UUID `json:"ledger_ids"`
	SettledAt        time.Time   `json:"settled_at"`
}

// RevenueAlertEvent announces a threshold breach from the alert evaluator.
type RevenueAlertEvent struct {
	AlertID      uuid.UUID     `json:"alert_id"`
	TenantID     uuid.UUID     `json:"tenant_id"`
	Metric       AlertMetric   `json:"metric"`
	Severity     AlertSeverity `json:"severity"`
	CurrentValue int64         `json:"current_value"`
	PeriodStart  time.Time     `json:"period_start"`
	PeriodEnd    time.Time     `json:"period_end"`
}

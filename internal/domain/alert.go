/**
 * @description
 * Revenue alert rule and alert models. Rules are mutable configuration;
 * alerts are derived, append-only breach records.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertPeriod is the aggregation window a rule evaluates over.
type AlertPeriod string

const (
	PeriodDaily   AlertPeriod = "daily"
	PeriodWeekly  AlertPeriod = "weekly"
	PeriodMonthly AlertPeriod = "monthly"
)

// AlertMetric is the aggregate a rule compares against its threshold.
type AlertMetric string

const (
	MetricRevenue     AlertMetric = "revenue"
	MetricSettledFees AlertMetric = "settled_fees"
	MetricOutstanding AlertMetric = "outstanding_fees"
)

// ThresholdType determines how a rule's threshold is interpreted.
type ThresholdType string

const (
	ThresholdAbsolute       ThresholdType = "absolute"
	ThresholdPercentageDrop ThresholdType = "percentage_drop"
)

// AlertSeverity grades a breach by how far past the threshold it landed.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertRule is a configured threshold check, optionally scoped to one tenant.
type AlertRule struct {
	ID               uuid.UUID     `json:"id"`
	TenantID         *uuid.UUID    `json:"tenant_id,omitempty"`
	Period           AlertPeriod   `json:"period"`
	Metric           AlertMetric   `json:"metric"`
	ThresholdType    ThresholdType `json:"threshold_type"`
	ThresholdValue   float64       `json:"threshold_value"`
	ComparisonPeriod AlertPeriod   `json:"comparison_period"`
	Active           bool          `json:"active"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Alert is a materialized rule breach.
type Alert struct {
	ID           uuid.UUID     `json:"id"`
	RuleID       uuid.UUID     `json:"rule_id"`
	TenantID     uuid.UUID     `json:"tenant_id"`
	Severity     AlertSeverity `json:"severity"`
	Metric       AlertMetric   `json:"metric"`
	CurrentValue int64         `json:"current_value"`
	PeriodStart  time.Time     `json:"period_start"`
	PeriodEnd    time.Time     `json:"period_end"`
	Acknowledged bool          `json:"acknowledged"`
	CreatedAt    time.Time     `json:"created_at"`
}

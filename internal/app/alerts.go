/**
 * @description
 * Revenue alert evaluation. A scheduled job folds ledger aggregates per
 * tenant and compares them to configured thresholds, materializing breaches
 * as append-only alerts and announcing them through the outbox.
 */
package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

// AlertRunResult summarizes one evaluation sweep.
type AlertRunResult struct {
	RulesEvaluated int `json:"rules_evaluated"`
	AlertsRaised   int `json:"alerts_raised"`
}

func periodWindow(period domain.AlertPeriod, now time.Time) (time.Time, time.Time) {
	switch period {
	case domain.PeriodWeekly:
		return now.AddDate(0, 0, -7), now
	case domain.PeriodMonthly:
		return now.AddDate(0, -1, 0), now
	default:
		return now.AddDate(0, 0, -1), now
	}
}

// EvaluateAlertRules runs every active rule against current ledger
// aggregates. Tenant-scoped rules check their tenant; global rules fan out
// over every tenant with ledger activity in the evaluation window.
func (s *Service) EvaluateAlertRules(ctx context.Context) (*AlertRunResult, error) {
	rules, err := s.repo.ListActiveAlertRules(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &AlertRunResult{RulesEvaluated: len(rules)}
	for _, rule := range rules {
		tenantIDs, err := s.ruleTenants(ctx, rule, now)
		if err != nil {
			log.Printf("WARN: could not resolve tenants for alert rule %s: %v", rule.ID, err)
			continue
		}
		for _, tenantID := range tenantIDs {
			raised, err := s.evaluateRuleForTenant(ctx, rule, tenantID, now)
			if err != nil {
				log.Printf("WARN: alert rule %s failed for tenant %s: %v", rule.ID, tenantID, err)
				continue
			}
			if raised {
				result.AlertsRaised++
			}
		}
	}
	return result, nil
}

func (s *Service) ruleTenants(ctx context.Context, rule domain.AlertRule, now time.Time) ([]uuid.UUID, error) {
	if rule.TenantID != nil {
		return []uuid.UUID{*rule.TenantID}, nil
	}
	start, end := periodWindow(rule.Period, now)
	return s.repo.ListBilledTenantIDs(ctx, start, end)
}

func (s *Service) metricValue(ctx context.Context, metric domain.AlertMetric, tenantID uuid.UUID, start, end time.Time) (int64, error) {
	switch metric {
	case domain.MetricOutstanding:
		return s.repo.OutstandingAmountAt(ctx, tenantID, end)
	default:
		// revenue and settled_fees both fold settled ledger amounts.
		return s.repo.SettledAmountForPeriod(ctx, tenantID, start, end)
	}
}

func (s *Service) evaluateRuleForTenant(ctx context.Context, rule domain.AlertRule, tenantID uuid.UUID, now time.Time) (bool, error) {
	start, end := periodWindow(rule.Period, now)
	current, err := s.metricValue(ctx, rule.Metric, tenantID, start, end)
	if err != nil {
		return false, err
	}

	breached, severity := false, domain.SeverityWarning
	switch rule.ThresholdType {
	case domain.ThresholdPercentageDrop:
		compStart, compEnd := comparisonWindow(rule, start)
		previous, err := s.metricValue(ctx, rule.Metric, tenantID, compStart, compEnd)
		if err != nil {
			return false, err
		}
		if previous <= 0 {
			return false, nil
		}
		drop := (float64(previous-current) / float64(previous)) * 100
		if drop >= rule.ThresholdValue {
			breached = true
			if drop >= rule.ThresholdValue*1.5 {
				severity = domain.SeverityCritical
			}
		}
	default:
		// Absolute thresholds: outstanding fees alert when they climb past
		// the threshold; revenue metrics alert when they fall below it.
		threshold := int64(rule.ThresholdValue)
		if rule.Metric == domain.MetricOutstanding {
			breached = current > threshold
			severity = severityByRatio(float64(current), float64(threshold)*2)
		} else {
			breached = current < threshold
			severity = severityByRatio(float64(threshold), float64(current)*2)
		}
	}
	if !breached {
		return false, nil
	}

	alert := &domain.Alert{
		RuleID:       rule.ID,
		TenantID:     tenantID,
		Severity:     severity,
		Metric:       rule.Metric,
		CurrentValue: current,
		PeriodStart:  start,
		PeriodEnd:    end,
	}
	if err := s.repo.InsertAlert(ctx, alert); err != nil {
		return false, err
	}

	payload, err := json.Marshal(domain.RevenueAlertEvent{
		AlertID:      alert.ID,
		TenantID:     tenantID,
		Metric:       rule.Metric,
		Severity:     severity,
		CurrentValue: current,
		PeriodStart:  start,
		PeriodEnd:    end,
	})
	if err == nil {
		if err := s.repo.EnqueueOutbox(ctx, domain.EventsExchange, domain.RouteRevenueAlert, payload); err != nil {
			log.Printf("WARN: failed to enqueue alert event for tenant %s: %v", tenantID, err)
		}
	}
	return true, nil
}

func comparisonWindow(rule domain.AlertRule, currentStart time.Time) (time.Time, time.Time) {
	period := rule.ComparisonPeriod
	if period == "" {
		period = rule.Period
	}
	start, _ := periodWindow(period, currentStart)
	return start, currentStart
}

func severityByRatio(value, criticalAt float64) domain.AlertSeverity {
	if criticalAt > 0 && value >= criticalAt {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}

// SaveAlertRule validates and writes an alert rule.
func (s *Service) SaveAlertRule(ctx context.Context, rule *domain.AlertRule) error {
	switch rule.Period {
	case domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly:
	default:
		return &domain.ValidationError{Field: "period", Reason: "must be daily, weekly or monthly"}
	}
	switch rule.ThresholdType {
	case domain.ThresholdAbsolute, domain.ThresholdPercentageDrop:
	default:
		return &domain.ValidationError{Field: "threshold_type", Reason: "must be absolute or percentage_drop"}
	}
	if rule.ThresholdValue <= 0 {
		return &domain.ValidationError{Field: "threshold_value", Reason: "must be positive"}
	}
	return s.repo.UpsertAlertRule(ctx, rule)
}

// ListAlerts lists materialized alerts.
func (s *Service) ListAlerts(ctx context.Context, tenantID *uuid.UUID, unacknowledgedOnly bool, limit int) ([]domain.Alert, error) {
	return s.repo.ListAlerts(ctx, tenantID, unacknowledgedOnly, limit)
}

// AcknowledgeAlert marks an alert as seen.
func (s *Service) AcknowledgeAlert(ctx context.Context, alertID uuid.UUID) (bool, error) {
	return s.repo.AcknowledgeAlert(ctx, alertID)
}

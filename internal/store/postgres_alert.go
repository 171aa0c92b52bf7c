/**
 * @description
 * Alert rule persistence and the revenue aggregates the alert evaluator
 * reads. Alerts are append-only; only the acknowledged flag ever changes.
 */
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

const alertRuleColumns = `id, tenant_id, period, metric, threshold_type, threshold_value,
	comparison_period, active, created_at, updated_at`

func scanAlertRule(row pgx.Row) (*domain.AlertRule, error) {
	var rule domain.AlertRule
	err := row.Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.Period,
		&rule.Metric,
		&rule.ThresholdType,
		&rule.ThresholdValue,
		&rule.ComparisonPeriod,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListActiveAlertRules returns every active rule.
func (r *PostgresRepository) ListActiveAlertRules(ctx context.Context) ([]domain.AlertRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_rules WHERE active = TRUE ORDER BY created_at`, alertRuleColumns)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// UpsertAlertRule writes an alert rule.
func (r *PostgresRepository) UpsertAlertRule(ctx context.Context, rule *domain.AlertRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO alert_rules (id, tenant_id, period, metric, threshold_type, threshold_value, comparison_period, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			period = EXCLUDED.period,
			metric = EXCLUDED.metric,
			threshold_type = EXCLUDED.threshold_type,
			threshold_value = EXCLUDED.threshold_value,
			comparison_period = EXCLUDED.comparison_period,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, rule.ID, rule.TenantID, rule.Period, rule.Metric, rule.ThresholdType,
		rule.ThresholdValue, rule.ComparisonPeriod, rule.Active,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

// SettledAmountForPeriod sums a tenant's settled fees inside a window.
func (r *PostgresRepository) SettledAmountForPeriod(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(fee_amount), 0)
		FROM fee_ledger_entries
		WHERE tenant_id = $1 AND status = 'settled' AND settled_at >= $2 AND settled_at < $3
	`, tenantID, start, end).Scan(&total)
	return total, err
}

// OutstandingAmountAt sums a tenant's currently open fees.
func (r *PostgresRepository) OutstandingAmountAt(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(fee_amount), 0)
		FROM fee_ledger_entries
		WHERE tenant_id = $1 AND status IN ('pending', 'billed') AND created_at < $2
	`, tenantID, at).Scan(&total)
	return total, err
}

// ListBilledTenantIDs lists tenants with ledger activity in a window. Global
// alert rules fan out over this set.
func (r *PostgresRepository) ListBilledTenantIDs(ctx context.Context, start, end time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT tenant_id
		FROM fee_ledger_entries
		WHERE created_at >= $1 AND created_at < $2
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertAlert appends a materialized breach record.
func (r *PostgresRepository) InsertAlert(ctx context.Context, alert *domain.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO revenue_alerts (id, rule_id, tenant_id, severity, metric, current_value, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, alert.ID, alert.RuleID, alert.TenantID, alert.Severity, alert.Metric,
		alert.CurrentValue, alert.PeriodStart, alert.PeriodEnd,
	).Scan(&alert.CreatedAt)
}

// ListAlerts lists alerts, optionally scoped to a tenant or to
// unacknowledged breaches only.
func (r *PostgresRepository) ListAlerts(ctx context.Context, tenantID *uuid.UUID, unacknowledgedOnly bool, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, rule_id, tenant_id, severity, metric, current_value, period_start, period_end, acknowledged, created_at
		FROM revenue_alerts
		WHERE ($1::uuid IS NULL OR tenant_id = $1)
		  AND (NOT $2 OR acknowledged = FALSE)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, unacknowledgedOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(
			&a.ID, &a.RuleID, &a.TenantID, &a.Severity, &a.Metric,
			&a.CurrentValue, &a.PeriodStart, &a.PeriodEnd, &a.Acknowledged, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert flips the acknowledged flag. Returns false when the alert
// does not exist or was already acknowledged.
func (r *PostgresRepository) AcknowledgeAlert(ctx context.Context, alertID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE revenue_alerts SET acknowledged = TRUE WHERE id = $1 AND acknowledged = FALSE
	`, alertID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

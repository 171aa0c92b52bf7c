/**
 * @description
 * Dispute persistence. Dispute creation validates the targeted ledger
 * entries inside the transaction and writes the audit trail row with it.
 */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

const disputeColumns = `id, tenant_id, ledger_ids, dispute_reason, requested_action, requested_amount,
	status, resolution_notes, resolved_by, resolved_at, created_at, updated_at`

func scanDispute(row pgx.Row) (*domain.Dispute, error) {
	var d domain.Dispute
	err := row.Scan(
		&d.ID,
		&d.TenantID,
		&d.LedgerIDs,
		&d.DisputeReason,
		&d.RequestedAction,
		&d.RequestedAmount,
		&d.Status,
		&d.ResolutionNotes,
		&d.ResolvedBy,
		&d.ResolvedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDispute opens a dispute against a batch of open ledger entries. The
// entries are locked and checked inside the transaction, so a settlement
// racing the dispute cannot leave the dispute pointing at terminal entries.
func (r *PostgresRepository) CreateDispute(ctx context.Context, dispute *domain.Dispute) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockEligibleEntries(ctx, tx, dispute.LedgerIDs, domain.LedgerWaived, domain.LedgerStatus.Open); err != nil {
		return err
	}

	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	dispute.Status = domain.DisputeOpen
	if err := tx.QueryRow(ctx, `
		INSERT INTO fee_disputes (id, tenant_id, ledger_ids, dispute_reason, requested_action, requested_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, dispute.ID, dispute.TenantID, dispute.LedgerIDs, dispute.DisputeReason,
		dispute.RequestedAction, dispute.RequestedAmount, dispute.Status,
	).Scan(&dispute.CreatedAt, &dispute.UpdatedAt); err != nil {
		return err
	}

	detail, _ := json.Marshal(map[string]interface{}{
		"ledger_ids":       dispute.LedgerIDs,
		"requested_action": dispute.RequestedAction,
		"requested_amount": dispute.RequestedAmount,
		"reason":           dispute.DisputeReason,
	})
	if err := insertAuditEventTx(ctx, tx, AuditEvent{
		TenantID:   dispute.TenantID,
		Action:     "dispute.created",
		EntityType: "fee_dispute",
		EntityID:   dispute.ID.String(),
		Detail:     detail,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindDispute fetches one dispute by ID.
func (r *PostgresRepository) FindDispute(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_disputes WHERE id = $1`, disputeColumns)
	dispute, err := scanDispute(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, err
	}
	return dispute, nil
}

// ListDisputesByTenant lists a tenant's disputes, newest first.
func (r *PostgresRepository) ListDisputesByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.Dispute, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s FROM fee_disputes
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, disputeColumns)
	rows, err := r.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, *d)
	}
	return disputes, rows.Err()
}

// ResolveDispute records an administrative resolution on an open dispute and
// appends the audit trail row in the same transaction.
func (r *PostgresRepository) ResolveDispute(ctx context.Context, id uuid.UUID, status domain.DisputeStatus, notes string, resolvedBy string, now time.Time) (*domain.Dispute, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE fee_disputes
		SET status = $2, resolution_notes = $3, resolved_by = $4, resolved_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'open'
		RETURNING %s
	`, disputeColumns)
	dispute, err := scanDispute(tx.QueryRow(ctx, query, id, status, notes, resolvedBy, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, err
	}

	detail, _ := json.Marshal(map[string]interface{}{
		"status":      status,
		"notes":       notes,
		"resolved_by": resolvedBy,
		"ledger_ids":  dispute.LedgerIDs,
	})
	if err := insertAuditEventTx(ctx, tx, AuditEvent{
		TenantID:   dispute.TenantID,
		Action:     "dispute." + string(status),
		EntityType: "fee_dispute",
		EntityID:   dispute.ID.String(),
		Detail:     detail,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return dispute, nil
}

/**
 * @description
 * Reconciliation record persistence. Linking is guarded so one internal
 * payment can never be matched to two external records.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

const reconColumns = `id, tenant_id, reference, amount, transaction_date, source, status,
	matched_payment_id, reconciled_at, created_at`

func scanReconRecord(row pgx.Row) (*domain.ReconciliationRecord, error) {
	var rec domain.ReconciliationRecord
	err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.Reference,
		&rec.Amount,
		&rec.TransactionDate,
		&rec.Source,
		&rec.Status,
		&rec.MatchedPaymentID,
		&rec.ReconciledAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertReconciliationRecord inserts one externally observed transaction.
func (r *PostgresRepository) InsertReconciliationRecord(ctx context.Context, record *domain.ReconciliationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = domain.ReconUnmatched
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO reconciliation_records (id, tenant_id, reference, amount, transaction_date, source, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, record.ID, record.TenantID, record.Reference, record.Amount,
		record.TransactionDate, record.Source, record.Status,
	).Scan(&record.CreatedAt)
}

// UpsertProviderRecord inserts or refreshes a provider-synced record keyed by
// (tenant_id, source, reference). A record that has already been matched is
// not overwritten; re-syncing it returns ErrRecordMatched.
func (r *PostgresRepository) UpsertProviderRecord(ctx context.Context, record *domain.ReconciliationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = domain.ReconUnmatched
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO reconciliation_records (id, tenant_id, reference, amount, transaction_date, source, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, source, reference) DO UPDATE SET
			amount = EXCLUDED.amount,
			transaction_date = EXCLUDED.transaction_date
		WHERE reconciliation_records.status = 'unmatched'
		RETURNING id, created_at
	`, record.ID, record.TenantID, record.Reference, record.Amount,
		record.TransactionDate, record.Source, record.Status,
	).Scan(&record.ID, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRecordMatched
	}
	return err
}

// FindReconciliationRecord fetches one record by ID.
func (r *PostgresRepository) FindReconciliationRecord(ctx context.Context, id uuid.UUID) (*domain.ReconciliationRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM reconciliation_records WHERE id = $1`, reconColumns)
	rec, err := scanReconRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListUnmatchedRecords lists a tenant's unmatched records, oldest first.
func (r *PostgresRepository) ListUnmatchedRecords(ctx context.Context, tenantID uuid.UUID) ([]domain.ReconciliationRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM reconciliation_records
		WHERE tenant_id = $1 AND status = 'unmatched'
		ORDER BY created_at ASC
	`, reconColumns)
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ReconciliationRecord
	for rows.Next() {
		rec, err := scanReconRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// FindCandidatePayments lists a tenant's payments with the given amount
// (within epsilon) that are not yet linked to any reconciliation record,
// earliest created first. The ordering is the auto-match tie-break.
func (r *PostgresRepository) FindCandidatePayments(ctx context.Context, tenantID uuid.UUID, amount int64, epsilon int64) ([]domain.PlatformPayment, error) {
	query := `
		SELECT p.id, p.tenant_id, p.payment_method_id, p.payment_reference, p.total_amount,
		       p.provider, p.status, p.provider_response, p.failure_reason, p.settled_at,
		       p.failed_at, p.created_at, p.updated_at
		FROM platform_payments p
		WHERE p.tenant_id = $1
		  AND ABS(p.total_amount - $2) <= $3
		  AND NOT EXISTS (
			SELECT 1 FROM reconciliation_records
			WHERE matched_payment_id = p.id
		  )
		ORDER BY p.created_at ASC
	`
	rows, err := r.db.Query(ctx, query, tenantID, amount, epsilon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.PlatformPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// LinkRecordToPayment links an external record to an internal payment. The
// guard clauses refuse to re-link a record or double-link a payment.
func (r *PostgresRepository) LinkRecordToPayment(ctx context.Context, recordID, paymentID uuid.UUID, status domain.ReconciliationStatus, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var alreadyLinked bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reconciliation_records
			WHERE matched_payment_id = $1 AND id <> $2
		)
	`, paymentID, recordID).Scan(&alreadyLinked); err != nil {
		return err
	}
	if alreadyLinked {
		return ErrPaymentLinked
	}

	tag, err := tx.Exec(ctx, `
		UPDATE reconciliation_records
		SET status = $2, matched_payment_id = $3, reconciled_at = $4
		WHERE id = $1
	`, recordID, status, paymentID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return tx.Commit(ctx)
}

// GetReconciliationSummary folds a tenant's records into match statistics.
func (r *PostgresRepository) GetReconciliationSummary(ctx context.Context, tenantID uuid.UUID) (*domain.ReconciliationSummary, error) {
	var summary domain.ReconciliationSummary
	if err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'matched'),
			COUNT(*) FILTER (WHERE status = 'partial'),
			COUNT(*) FILTER (WHERE status = 'overpaid'),
			COUNT(*) FILTER (WHERE status = 'unmatched')
		FROM reconciliation_records
		WHERE tenant_id = $1
	`, tenantID).Scan(
		&summary.Total,
		&summary.Matched,
		&summary.Partial,
		&summary.Overpaid,
		&summary.Unmatched,
	); err != nil {
		return nil, err
	}
	summary.MatchRate = domain.ComputeMatchRate(summary.Matched, summary.Total)
	return &summary, nil
}

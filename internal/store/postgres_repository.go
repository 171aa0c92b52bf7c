/**
 * @description
 * PostgreSQL implementation of the repository: connection pool wrapper, fee
 * configuration access and the fee ledger state machine. Batch transitions
 * run as a single database transaction with the target rows locked, so a
 * batch either moves entirely or not at all.
 */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const feeConfigColumns = `id, tenant_id, fee_type, booking_fee, qr_fee, payer, billing_cycle,
	applies_to, trial_exemption_enabled, trial_days, trial_end_date, active,
	tenant_created_at, created_at, updated_at`

// GetActiveFeeConfig returns the tenant's active fee configuration. When more
// than one row is marked active the most recently updated wins.
func (r *PostgresRepository) GetActiveFeeConfig(ctx context.Context, tenantID uuid.UUID) (*domain.FeeConfiguration, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM fee_configurations
		WHERE tenant_id = $1 AND active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`, feeConfigColumns)

	var cfg domain.FeeConfiguration
	var appliesTo []string
	err := r.db.QueryRow(ctx, query, tenantID).Scan(
		&cfg.ID,
		&cfg.TenantID,
		&cfg.FeeType,
		&cfg.BookingFee,
		&cfg.QRFee,
		&cfg.Payer,
		&cfg.BillingCycle,
		&appliesTo,
		&cfg.TrialExemptionEnabled,
		&cfg.TrialDays,
		&cfg.TrialEndDate,
		&cfg.Active,
		&cfg.TenantCreatedAt,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeeConfigNotFound
		}
		return nil, err
	}

	for _, class := range appliesTo {
		cfg.AppliesTo = append(cfg.AppliesTo, domain.TransactionClass(class))
	}
	return &cfg, nil
}

// UpsertFeeConfig writes a tenant's fee configuration. Activating a
// configuration deactivates any previous active one in the same transaction,
// keeping at most one active config per tenant (last write wins).
func (r *PostgresRepository) UpsertFeeConfig(ctx context.Context, cfg *domain.FeeConfiguration) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if cfg.Active {
		if _, err := tx.Exec(ctx,
			`UPDATE fee_configurations SET active = FALSE, updated_at = NOW() WHERE tenant_id = $1 AND active = TRUE`,
			cfg.TenantID,
		); err != nil {
			return err
		}
	}

	appliesTo := make([]string, len(cfg.AppliesTo))
	for i, class := range cfg.AppliesTo {
		appliesTo[i] = string(class)
	}

	query := `
		INSERT INTO fee_configurations (
			id, tenant_id, fee_type, booking_fee, qr_fee, payer, billing_cycle,
			applies_to, trial_exemption_enabled, trial_days, trial_end_date, active, tenant_created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			fee_type = EXCLUDED.fee_type,
			booking_fee = EXCLUDED.booking_fee,
			qr_fee = EXCLUDED.qr_fee,
			payer = EXCLUDED.payer,
			billing_cycle = EXCLUDED.billing_cycle,
			applies_to = EXCLUDED.applies_to,
			trial_exemption_enabled = EXCLUDED.trial_exemption_enabled,
			trial_days = EXCLUDED.trial_days,
			trial_end_date = EXCLUDED.trial_end_date,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if err := tx.QueryRow(ctx, query,
		cfg.ID, cfg.TenantID, cfg.FeeType, cfg.BookingFee, cfg.QRFee, cfg.Payer, cfg.BillingCycle,
		appliesTo, cfg.TrialExemptionEnabled, cfg.TrialDays, cfg.TrialEndDate, cfg.Active, cfg.TenantCreatedAt,
	).Scan(&cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const ledgerColumns = `id, tenant_id, reference_type, reference_id, base_amount, fee_amount, rate,
	fee_type, billing_cycle, payer, status, payment_id, waived_reason, approval_notes,
	billed_at, settled_at, failed_at, waived_at, created_at, updated_at`

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := row.Scan(
		&entry.ID,
		&entry.TenantID,
		&entry.ReferenceType,
		&entry.ReferenceID,
		&entry.BaseAmount,
		&entry.FeeAmount,
		&entry.Rate,
		&entry.FeeType,
		&entry.BillingCycle,
		&entry.Payer,
		&entry.Status,
		&entry.PaymentID,
		&entry.WaivedReason,
		&entry.ApprovalNotes,
		&entry.BilledAt,
		&entry.SettledAt,
		&entry.FailedAt,
		&entry.WaivedAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// InsertLedgerEntry posts a new fee obligation. The unique index on
// (reference_type, reference_id) makes fee posting idempotent per billable
// transaction; a duplicate returns ErrDuplicateFee.
func (r *PostgresRepository) InsertLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO fee_ledger_entries (
			id, tenant_id, reference_type, reference_id, base_amount, fee_amount, rate,
			fee_type, billing_cycle, payer, status, billed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (reference_type, reference_id) DO NOTHING
		RETURNING created_at, updated_at
	`
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		entry.ID, entry.TenantID, entry.ReferenceType, entry.ReferenceID,
		entry.BaseAmount, entry.FeeAmount, entry.Rate, entry.FeeType,
		entry.BillingCycle, entry.Payer, entry.Status, entry.BilledAt,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicateFee
		}
		return err
	}
	return nil
}

// FindLedgerEntry fetches one ledger entry by ID.
func (r *PostgresRepository) FindLedgerEntry(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_ledger_entries WHERE id = $1`, ledgerColumns)
	entry, err := scanLedgerEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLedgerNotFound
		}
		return nil, err
	}
	return entry, nil
}

// FindLedgerEntryByReference fetches the ledger entry posted for a billable
// transaction, if any.
func (r *PostgresRepository) FindLedgerEntryByReference(ctx context.Context, refType domain.ReferenceType, refID uuid.UUID) (*domain.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_ledger_entries WHERE reference_type = $1 AND reference_id = $2`, ledgerColumns)
	entry, err := scanLedgerEntry(r.db.QueryRow(ctx, query, refType, refID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLedgerNotFound
		}
		return nil, err
	}
	return entry, nil
}

// FindLedgerEntries fetches a batch of ledger entries by ID.
func (r *PostgresRepository) FindLedgerEntries(ctx context.Context, ids []uuid.UUID) ([]domain.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_ledger_entries WHERE id = ANY($1)`, ledgerColumns)
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func ledgerFilterClause(filter LedgerFilter, args *[]interface{}) string {
	*args = append(*args, filter.TenantID)
	clauses := []string{fmt.Sprintf("tenant_id = $%d", len(*args))}
	if filter.Status != nil {
		*args = append(*args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(*args)))
	}
	if filter.From != nil {
		*args = append(*args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(*args)))
	}
	if filter.To != nil {
		*args = append(*args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(*args)))
	}
	return strings.Join(clauses, " AND ")
}

// ListLedgerEntries lists a tenant's ledger entries, newest first.
func (r *PostgresRepository) ListLedgerEntries(ctx context.Context, filter LedgerFilter) ([]domain.LedgerEntry, error) {
	var args []interface{}
	where := ledgerFilterClause(filter, &args)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM fee_ledger_entries
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d
	`, ledgerColumns, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// GetLedgerSummary folds a tenant's entries into billing totals. It is always
// computed from the rows at call time; nothing is cached.
func (r *PostgresRepository) GetLedgerSummary(ctx context.Context, filter LedgerFilter) (*domain.LedgerSummary, error) {
	var args []interface{}
	where := ledgerFilterClause(filter, &args)

	query := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(fee_amount), 0),
			COALESCE(SUM(fee_amount) FILTER (WHERE status IN ('pending', 'billed')), 0),
			COALESCE(SUM(fee_amount) FILTER (WHERE status = 'settled'), 0),
			COALESCE(SUM(fee_amount) FILTER (WHERE status = 'failed'), 0),
			COALESCE(SUM(fee_amount) FILTER (WHERE status = 'waived'), 0),
			COUNT(*)
		FROM fee_ledger_entries
		WHERE %s
	`, where)

	var summary domain.LedgerSummary
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&summary.TotalFees,
		&summary.OutstandingAmount,
		&summary.SettledAmount,
		&summary.FailedAmount,
		&summary.WaivedAmount,
		&summary.EntryCount,
	); err != nil {
		return nil, err
	}
	return &summary, nil
}

// lockEligibleEntries locks the given ledger rows and returns an
// InvalidStateError naming every entry that is missing or rejected by the
// eligibility predicate. Waivers accept only open entries; settlement also
// accepts failed ones so a declined charge can be retried.
func lockEligibleEntries(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, requested domain.LedgerStatus, eligible func(domain.LedgerStatus) bool) error {
	rows, err := tx.Query(ctx,
		`SELECT id, status FROM fee_ledger_entries WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := make(map[uuid.UUID]domain.LedgerStatus, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var status domain.LedgerStatus
		if err := rows.Scan(&id, &status); err != nil {
			return err
		}
		found[id] = status
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var invalid []uuid.UUID
	for _, id := range ids {
		status, ok := found[id]
		if !ok || !eligible(status) {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return &domain.InvalidStateError{Requested: requested, EntryIDs: invalid}
	}
	return nil
}

// WaiveLedgerEntries waives a batch of open entries with the given reason.
// The whole batch fails if any entry is already terminal. The audit row and
// the tenant-facing waiver event commit with the transition.
func (r *PostgresRepository) WaiveLedgerEntries(ctx context.Context, ids []uuid.UUID, reason string, notes *string, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockEligibleEntries(ctx, tx, ids, domain.LedgerWaived, domain.LedgerStatus.Open); err != nil {
		return err
	}

	var tenantID uuid.UUID
	var waivedAmount int64
	if err := tx.QueryRow(ctx, `
		SELECT MIN(tenant_id::text)::uuid, COALESCE(SUM(fee_amount), 0)
		FROM fee_ledger_entries WHERE id = ANY($1)
	`, ids).Scan(&tenantID, &waivedAmount); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE fee_ledger_entries
		SET status = 'waived', waived_reason = $2, approval_notes = $3, waived_at = $4, updated_at = NOW()
		WHERE id = ANY($1)
	`, ids, reason, notes, now); err != nil {
		return err
	}

	detail, _ := json.Marshal(map[string]interface{}{
		"ledger_ids": ids,
		"reason":     reason,
		"amount":     waivedAmount,
	})
	if err := insertAuditEventTx(ctx, tx, AuditEvent{
		TenantID:   tenantID,
		Action:     "ledger.waived",
		EntityType: "fee_ledger_entry",
		EntityID:   fmt.Sprintf("batch:%d", len(ids)),
		Detail:     detail,
	}); err != nil {
		return err
	}

	payload, err := json.Marshal(domain.FeesWaivedEvent{
		TenantID:     tenantID,
		LedgerIDs:    ids,
		WaivedAmount: waivedAmount,
		Reason:       reason,
		WaivedAt:     now,
	})
	if err != nil {
		return err
	}
	if err := enqueueOutboxTx(ctx, tx, domain.EventsExchange, domain.RouteFeesWaived, payload); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// PromoteDeferredEntries moves pending deferred-cycle entries created before
// the cutoff into billed state. Used by the scheduled billing run.
func (r *PostgresRepository) PromoteDeferredEntries(ctx context.Context, before time.Time, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE fee_ledger_entries
		SET status = 'billed', billed_at = $2, updated_at = NOW()
		WHERE status = 'pending' AND billing_cycle = 'deferred' AND created_at < $1
	`, before, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

/**
 * @description
 * Payment persistence and the settlement transaction. FinalizePayment claims
 * the payment row with a conditional update keyed on its current status, so
 * concurrent webhook deliveries for the same reference serialize on the row
 * and redeliveries of a terminal payment become no-ops. Ledger transitions,
 * the audit trail row and the outbox event all commit in the same database
 * transaction as the claim.
 */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

const paymentColumns = `id, tenant_id, payment_method_id, payment_reference, total_amount,
	provider, status, provider_response, failure_reason, settled_at, failed_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.PlatformPayment, error) {
	var p domain.PlatformPayment
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.PaymentMethodID,
		&p.PaymentReference,
		&p.TotalAmount,
		&p.Provider,
		&p.Status,
		&p.ProviderResponse,
		&p.FailureReason,
		&p.SettledAt,
		&p.FailedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) loadPaymentLedgerIDs(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, paymentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx,
		`SELECT ledger_id FROM platform_payment_items WHERE payment_id = $1 ORDER BY ledger_id`, paymentID)
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

// CreatePayment opens a settlement attempt over a batch of collectible
// ledger entries, which includes failed ones being retried. The covered
// entries are locked and re-summed inside the transaction: the payment total
// must equal the sum of their fee amounts.
func (r *PostgresRepository) CreatePayment(ctx context.Context, params CreatePaymentParams) (*domain.PlatformPayment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockEligibleEntries(ctx, tx, params.LedgerIDs, domain.LedgerSettled, domain.LedgerStatus.Collectible); err != nil {
		return nil, err
	}

	var sum int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(fee_amount), 0) FROM fee_ledger_entries WHERE id = ANY($1)`,
		params.LedgerIDs,
	).Scan(&sum); err != nil {
		return nil, err
	}
	if sum != params.TotalAmount {
		return nil, &domain.ValidationError{
			Field:  "total_amount",
			Reason: fmt.Sprintf("payment total %d does not equal covered fee sum %d", params.TotalAmount, sum),
		}
	}

	payment := &domain.PlatformPayment{
		ID:               uuid.New(),
		TenantID:         params.TenantID,
		PaymentMethodID:  params.PaymentMethodID,
		PaymentReference: params.PaymentReference,
		TotalAmount:      params.TotalAmount,
		Provider:         params.Provider,
		Status:           domain.PaymentInitiated,
		LedgerIDs:        params.LedgerIDs,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO platform_payments (id, tenant_id, payment_method_id, payment_reference, total_amount, provider, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, payment.ID, payment.TenantID, payment.PaymentMethodID, payment.PaymentReference,
		payment.TotalAmount, payment.Provider, payment.Status,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return nil, err
	}

	for _, ledgerID := range params.LedgerIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO platform_payment_items (payment_id, ledger_id) VALUES ($1, $2)`,
			payment.ID, ledgerID,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payment, nil
}

// FindPaymentByReference resolves a payment by its unique reference.
func (r *PostgresRepository) FindPaymentByReference(ctx context.Context, reference string) (*domain.PlatformPayment, error) {
	query := fmt.Sprintf(`SELECT %s FROM platform_payments WHERE payment_reference = $1`, paymentColumns)
	payment, err := scanPayment(r.db.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	payment.LedgerIDs, err = r.loadPaymentLedgerIDs(ctx, r.db, payment.ID)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// FindPaymentByID resolves a payment by its ID.
func (r *PostgresRepository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*domain.PlatformPayment, error) {
	query := fmt.Sprintf(`SELECT %s FROM platform_payments WHERE id = $1`, paymentColumns)
	payment, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	payment.LedgerIDs, err = r.loadPaymentLedgerIDs(ctx, r.db, payment.ID)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// MarkPaymentProcessing moves an initiated payment to processing. Terminal
// payments are left untouched.
func (r *PostgresRepository) MarkPaymentProcessing(ctx context.Context, reference string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE platform_payments
		SET status = 'processing', updated_at = NOW()
		WHERE payment_reference = $1 AND status = 'initiated'
	`, reference)
	return err
}

// FinalizePayment applies a terminal provider outcome to a payment and its
// covered ledger entries atomically.
func (r *PostgresRepository) FinalizePayment(ctx context.Context, params FinalizePaymentParams) (*FinalizePaymentResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	newStatus := domain.PaymentFailed
	if params.Succeeded {
		newStatus = domain.PaymentSuccessful
	}

	claimQuery := fmt.Sprintf(`
		UPDATE platform_payments
		SET status = $2,
		    provider_response = COALESCE($3, provider_response),
		    failure_reason = CASE WHEN $2 = 'failed' THEN $5 ELSE failure_reason END,
		    settled_at = CASE WHEN $2 = 'successful' THEN $4 ELSE settled_at END,
		    failed_at = CASE WHEN $2 = 'failed' THEN $4 ELSE failed_at END,
		    updated_at = NOW()
		WHERE payment_reference = $1 AND status IN ('initiated', 'processing')
		RETURNING %s
	`, paymentColumns)

	payment, err := scanPayment(tx.QueryRow(ctx, claimQuery,
		params.PaymentReference, newStatus, params.ProviderResponse, params.Now, params.FailureReason))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		// Claim lost: either the reference is unknown or the payment is
		// already terminal (duplicate delivery). The caller distinguishes.
		existing, findErr := r.FindPaymentByReference(ctx, params.PaymentReference)
		if findErr != nil {
			return nil, findErr
		}
		return &FinalizePaymentResult{Payment: existing, Claimed: false}, nil
	}

	payment.LedgerIDs, err = r.loadPaymentLedgerIDs(ctx, tx, payment.ID)
	if err != nil {
		return nil, err
	}

	if err := lockEligibleEntries(ctx, tx, payment.LedgerIDs, domain.LedgerSettled, domain.LedgerStatus.Collectible); err != nil {
		return nil, err
	}

	if params.Succeeded {
		_, err = tx.Exec(ctx, `
			UPDATE fee_ledger_entries
			SET status = 'settled', payment_id = $2, settled_at = $3, updated_at = NOW()
			WHERE id = ANY($1)
		`, payment.LedgerIDs, payment.ID, params.Now)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE fee_ledger_entries
			SET status = 'failed', payment_id = $2, failed_at = $3, updated_at = NOW()
			WHERE id = ANY($1)
		`, payment.LedgerIDs, payment.ID, params.Now)
	}
	if err != nil {
		return nil, err
	}

	auditDetail, _ := json.Marshal(map[string]interface{}{
		"payment_reference": payment.PaymentReference,
		"status":            newStatus,
		"ledger_ids":        payment.LedgerIDs,
		"failure_reason":    params.FailureReason,
	})
	if err := insertAuditEventTx(ctx, tx, AuditEvent{
		TenantID:   payment.TenantID,
		Action:     "payment." + string(newStatus),
		EntityType: "platform_payment",
		EntityID:   payment.ID.String(),
		Detail:     auditDetail,
	}); err != nil {
		return nil, err
	}

	if params.DegradedTrust {
		trustDetail, _ := json.Marshal(map[string]interface{}{
			"payment_reference": payment.PaymentReference,
			"provider":          payment.Provider,
		})
		if err := insertAuditEventTx(ctx, tx, AuditEvent{
			TenantID:   payment.TenantID,
			Action:     "webhook.degraded_trust",
			EntityType: "platform_payment",
			EntityID:   payment.ID.String(),
			Detail:     trustDetail,
		}); err != nil {
			return nil, err
		}
	}

	event, routingKey := settlementEvent(payment, params)
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	if err := enqueueOutboxTx(ctx, tx, domain.EventsExchange, routingKey, payload); err != nil {
		return nil, err
	}

	if params.Succeeded {
		receipt, err := json.Marshal(domain.ReceiptRequestEvent{
			TenantID:         payment.TenantID,
			PaymentID:        payment.ID,
			PaymentReference: payment.PaymentReference,
			Amount:           payment.TotalAmount,
			LedgerIDs:        payment.LedgerIDs,
			SettledAt:        params.Now,
		})
		if err != nil {
			return nil, err
		}
		if err := enqueueOutboxTx(ctx, tx, domain.EventsExchange, domain.RouteReceiptRequest, receipt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &FinalizePaymentResult{Payment: payment, Claimed: true}, nil
}

func settlementEvent(payment *domain.PlatformPayment, params FinalizePaymentParams) (interface{}, string) {
	if params.Succeeded {
		return domain.PaymentSettledEvent{
			TenantID:         payment.TenantID,
			PaymentID:        payment.ID,
			PaymentReference: payment.PaymentReference,
			Provider:         payment.Provider,
			Amount:           payment.TotalAmount,
			LedgerIDs:        payment.LedgerIDs,
			SettledAt:        params.Now,
		}, domain.RoutePaymentSettled
	}

	reason := "payment declined by provider"
	if params.FailureReason != nil {
		reason = *params.FailureReason
	}
	return domain.PaymentFailedEvent{
		TenantID:         payment.TenantID,
		PaymentID:        payment.ID,
		PaymentReference: payment.PaymentReference,
		Provider:         payment.Provider,
		Amount:           payment.TotalAmount,
		LedgerIDs:        payment.LedgerIDs,
		FailureReason:    reason,
		Retryable:        true,
		FailedAt:         params.Now,
	}, domain.RoutePaymentFailed
}

/**
 * @description
 * Outbox and audit trail persistence. Outbox rows are written in the same
 * transaction as the state change they announce and claimed by the
 * dispatcher with a conditional update, so a crashed dispatcher's rows are
 * reclaimed after they go stale.
 */
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func enqueueOutboxTx(ctx context.Context, tx pgx.Tx, exchange, routingKey string, payload []byte) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO event_outbox (exchange, routing_key, payload, status)
		VALUES ($1, $2, $3, 'pending')
	`, exchange, routingKey, payload)
	return err
}

// EnqueueOutbox writes a standalone outbox row outside any caller transaction.
func (r *PostgresRepository) EnqueueOutbox(ctx context.Context, exchange, routingKey string, payload []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_outbox (exchange, routing_key, payload, status)
		VALUES ($1, $2, $3, 'pending')
	`, exchange, routingKey, payload)
	return err
}

// ClaimOutboxMessages claims a batch of publishable outbox rows: pending rows
// whose retry time has passed, plus processing rows stale enough to assume
// their claimer died.
func (r *PostgresRepository) ClaimOutboxMessages(ctx context.Context, batchSize int, staleAfterSeconds int) ([]OutboxMessage, error) {
	query := `
		UPDATE event_outbox
		SET status = 'processing', claimed_at = NOW(), attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM event_outbox
			WHERE (status = 'pending' AND (retry_at IS NULL OR retry_at <= NOW()))
			   OR (status = 'processing' AND claimed_at < NOW() - make_interval(secs => $2))
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, exchange, routing_key, payload, attempts, created_at
	`
	rows, err := r.db.Query(ctx, query, batchSize, staleAfterSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.Exchange, &m.RoutingKey, &m.Payload, &m.Attempts, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkOutboxPublished marks an outbox row as published.
func (r *PostgresRepository) MarkOutboxPublished(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE event_outbox
		SET status = 'published', published_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// MarkOutboxFailed schedules an outbox row for retry after a backoff.
func (r *PostgresRepository) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, lastError string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE event_outbox
		SET status = 'pending',
		    retry_at = NOW() + make_interval(secs => $2),
		    last_error = $3
		WHERE id = $1
	`, id, retryAfterSeconds, lastError)
	return err
}

func insertAuditEventTx(ctx context.Context, tx pgx.Tx, event AuditEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_events (tenant_id, action, entity_type, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, event.TenantID, event.Action, event.EntityType, event.EntityID, event.Detail)
	return err
}

// InsertAuditEvent appends one audit trail row. Audit rows are never updated
// or deleted.
func (r *PostgresRepository) InsertAuditEvent(ctx context.Context, event AuditEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_events (tenant_id, action, entity_type, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, event.TenantID, event.Action, event.EntityType, event.EntityID, event.Detail)
	return err
}

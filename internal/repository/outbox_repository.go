package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ecommerce-transactions/internal/events"
)

// OutboxMessage is a queue message committed in the same database
// transaction as the events that call for it. Consumers may see it from
// VisibleAt; the relay picks it up from RelayAfter, which leaves the
// committing handler a head start.
type OutboxMessage struct {
	Envelope   events.Envelope
	VisibleAt  time.Time
	RelayAfter time.Time
	Attempts   int
}

func (m OutboxMessage) ID() uuid.UUID {
	return m.Envelope.ID
}

// Visibility is the delay to send with when the message goes out at now.
func (m OutboxMessage) Visibility(now time.Time) time.Duration {
	if d := m.VisibleAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type PostgresOutboxRepository struct {
	db DBTX
}

func NewOutboxRepository(db DBTX) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{db: db}
}

func insertOutbox(ctx context.Context, q DBTX, msgs []OutboxMessage) error {
	for _, m := range msgs {
		txID, err := m.Envelope.TransactionID()
		if err != nil {
			return fmt.Errorf("outbox: %w", err)
		}
		raw, err := json.Marshal(m.Envelope)
		if err != nil {
			return fmt.Errorf("outbox: marshal %s: %w", m.ID(), err)
		}
		_, err = q.Exec(ctx, `INSERT INTO transaction_outbox
			(id, transaction_id, queue, envelope, visible_at, relay_after)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID(), txID, m.Envelope.Queue, raw, m.VisibleAt, m.RelayAfter)
		if err != nil {
			return fmt.Errorf("outbox: insert %s: %w", m.ID(), err)
		}
	}
	return nil
}

// ClaimPending leases up to limit unsent rows due at now by pushing their
// relay time forward by lease. Concurrent relays skip rows already locked.
func (r *PostgresOutboxRepository) ClaimPending(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]OutboxMessage, error) {
	rows, err := r.db.Query(ctx, `UPDATE transaction_outbox o
		SET relay_after = $2, attempts = o.attempts + 1
		FROM (
			SELECT id FROM transaction_outbox
			WHERE sent_at IS NULL AND failed_at IS NULL AND relay_after <= $1
			ORDER BY relay_after
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		) due
		WHERE o.id = due.id
		RETURNING o.envelope, o.visible_at, o.relay_after, o.attempts`,
		now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: claim: %w", err)
	}
	defer rows.Close()

	var msgs []OutboxMessage
	for rows.Next() {
		var (
			raw []byte
			m   OutboxMessage
		)
		if err := rows.Scan(&raw, &m.VisibleAt, &m.RelayAfter, &m.Attempts); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		if err := json.Unmarshal(raw, &m.Envelope); err != nil {
			return nil, fmt.Errorf("outbox: decode envelope: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: claim: %w", err)
	}
	return msgs, nil
}

func (r *PostgresOutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `UPDATE transaction_outbox SET sent_at = now(), last_error = NULL
		WHERE id = $1 AND sent_at IS NULL`, id); err != nil {
		return fmt.Errorf("outbox: mark sent %s: %w", id, err)
	}
	return nil
}

// MarkRetry makes the row due again at next.
func (r *PostgresOutboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, next time.Time, reason string) error {
	if _, err := r.db.Exec(ctx, `UPDATE transaction_outbox SET relay_after = $2, last_error = $3
		WHERE id = $1 AND sent_at IS NULL`, id, next, reason); err != nil {
		return fmt.Errorf("outbox: mark retry %s: %w", id, err)
	}
	return nil
}

// MarkFailed parks the row. It is kept for inspection and never relayed again.
func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if _, err := r.db.Exec(ctx, `UPDATE transaction_outbox SET failed_at = now(), last_error = $2
		WHERE id = $1 AND sent_at IS NULL`, id, reason); err != nil {
		return fmt.Errorf("outbox: mark failed %s: %w", id, err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ecommerce-transactions/internal/domain/transaction"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

type PostgresEventStore struct {
	db DBTX
}

func NewEventStore(db DBTX) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

const selectEvents = `SELECT id, transaction_id, event_code, schema_version, data, created_at
	FROM transaction_events`

func (s *PostgresEventStore) Append(ctx context.Context, expectedVersion int, events ...transaction.Event) error {
	return s.AppendWithOutbox(ctx, expectedVersion, events, nil)
}

func (s *PostgresEventStore) AppendWithOutbox(ctx context.Context, expectedVersion int, events []transaction.Event, outbox []OutboxMessage) error {
	if len(events) == 0 {
		return nil
	}
	txID := events[0].TransactionID
	for _, e := range events[1:] {
		if e.TransactionID != txID {
			return errors.New("append: events span multiple transactions")
		}
	}

	return WithTx(ctx, s.db, func(q DBTX) error {
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, txID.String()); err != nil {
			return fmt.Errorf("append: lock %s: %w", txID, err)
		}

		if expectedVersion != AnyVersion {
			var current int
			if err := q.QueryRow(ctx, `SELECT count(*) FROM transaction_events WHERE transaction_id = $1`, txID).Scan(&current); err != nil {
				return fmt.Errorf("append: version %s: %w", txID, err)
			}
			if current != expectedVersion {
				return fmt.Errorf("append: transaction %s at version %d, expected %d: %w",
					txID, current, expectedVersion, ecommerce_errors.ErrConflict)
			}
		}

		for _, e := range events {
			raw, err := encodeEventData(e.Data)
			if err != nil {
				return err
			}
			_, err = q.Exec(ctx, `INSERT INTO transaction_events
				(id, transaction_id, event_code, schema_version, data, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				e.ID, e.TransactionID, string(e.Code), schemaVersion, raw, e.CreatedAt)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("append: event %s: %w", e.ID, ecommerce_errors.ErrConflict)
				}
				return fmt.Errorf("append: insert %s: %w", e.Code, err)
			}
		}
		return insertOutbox(ctx, q, outbox)
	})
}

func (s *PostgresEventStore) ReadOrdered(ctx context.Context, transactionID uuid.UUID) ([]transaction.Event, error) {
	rows, err := s.db.Query(ctx, selectEvents+` WHERE transaction_id = $1 ORDER BY created_at, seq`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("read events %s: %w", transactionID, err)
	}
	defer rows.Close()

	var events []transaction.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events %s: %w", transactionID, err)
	}
	return events, nil
}

func (s *PostgresEventStore) ReadByTransactionAndEventType(ctx context.Context, transactionID uuid.UUID, code transaction.EventCode) (*transaction.Event, error) {
	row := s.db.QueryRow(ctx, selectEvents+` WHERE transaction_id = $1 AND event_code = $2
		ORDER BY created_at, seq LIMIT 1`, transactionID, string(code))
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func scanEvent(row pgx.Row) (transaction.Event, error) {
	var r eventRow
	if err := row.Scan(&r.ID, &r.TransactionID, &r.Code, &r.Version, &r.Data, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return transaction.Event{}, err
		}
		return transaction.Event{}, fmt.Errorf("scan event: %w", err)
	}
	return r.toEvent()
}

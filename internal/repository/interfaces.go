package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ecommerce-transactions/internal/domain/transaction"
)

// AnyVersion disables the optimistic concurrency check on Append.
const AnyVersion = -1

// EventStore is the append-only transaction log.
type EventStore interface {
	// Append writes events atomically. When expectedVersion is not AnyVersion
	// the append fails with ErrConflict unless the log holds exactly that many
	// events for the transaction.
	Append(ctx context.Context, expectedVersion int, events ...transaction.Event) error
	// AppendWithOutbox is Append that also stores outbox in the same
	// database transaction. Nothing is written when the append fails.
	AppendWithOutbox(ctx context.Context, expectedVersion int, events []transaction.Event, outbox []OutboxMessage) error
	ReadOrdered(ctx context.Context, transactionID uuid.UUID) ([]transaction.Event, error)
	// ReadByTransactionAndEventType returns the first event of the given code, or nil.
	ReadByTransactionAndEventType(ctx context.Context, transactionID uuid.UUID, code transaction.EventCode) (*transaction.Event, error)
}

// PaymentRequestInfoStore is the idempotency cache keyed by RptID.
type PaymentRequestInfoStore interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, rptID transaction.RptID) (*transaction.PaymentRequestInfo, error)
	Put(ctx context.Context, info transaction.PaymentRequestInfo) error
	// PutIfAbsent stores info unless an entry exists and returns whichever entry won.
	PutIfAbsent(ctx context.Context, info transaction.PaymentRequestInfo) (transaction.PaymentRequestInfo, error)
	Delete(ctx context.Context, rptID transaction.RptID) error
}

// OutboxStore tracks committed queue messages until they are sent.
type OutboxStore interface {
	ClaimPending(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, next time.Time, reason string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type ViewRepository interface {
	Upsert(ctx context.Context, v TransactionView) error
	GetByID(ctx context.Context, transactionID uuid.UUID) (TransactionView, error)
}

package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/gateway"
	"ecommerce-transactions/internal/nodo"
	"ecommerce-transactions/internal/psp"
)

type NodoClient interface {
	Activate(ctx context.Context, req nodo.ActivateRequest) (nodo.ActivateResponse, error)
	ClosePayment(ctx context.Context, req nodo.ClosePaymentRequest) (nodo.ClosePaymentResponse, error)
}

type GatewayClient interface {
	RequestAuthorization(ctx context.Context, req gateway.AuthorizationRequest) (gateway.AuthorizationResponse, error)
	Refund(ctx context.Context, req gateway.RefundRequest) (gateway.RefundResponse, error)
}

type PspClient interface {
	CalculateFees(ctx context.Context, req psp.FeeRequest) ([]psp.Bundle, error)
}

// Sender enqueues follow-up work. The message becomes visible after visibility.
type Sender interface {
	Send(ctx context.Context, env events.Envelope, visibility time.Duration) error
}

// OutboxMarker records that a committed outbox message reached the queue.
type OutboxMarker interface {
	MarkSent(ctx context.Context, id uuid.UUID) error
}

type TokenIssuer interface {
	Issue(transactionID uuid.UUID) (string, error)
}

// Projector receives every successfully appended batch.
type Projector interface {
	Project(ctx context.Context, tx transaction.Transaction, evs []transaction.Event) error
}

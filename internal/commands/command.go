package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ecommerce-transactions/internal/domain/transaction"
)

type Command interface {
	CommandType() string
	Validate() error
}

// TransactionCommand targets an existing transaction.
type TransactionCommand interface {
	Command
	TargetTransactionID() uuid.UUID
}

type Result struct {
	AggregateID string
	Transaction transaction.Transaction
	// Events holds what this command appended, in order.
	Events  []transaction.Event
	Payload any
}

func (r Result) merge(next Result) Result {
	r.Transaction = next.Transaction
	r.Events = append(r.Events, next.Events...)
	if next.Payload != nil {
		r.Payload = next.Payload
	}
	return r
}

type Handler interface {
	Handle(ctx context.Context, cmd Command) (Result, error)
}

type HandlerFunc func(ctx context.Context, cmd Command) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// Typed adapts a handler for one concrete command type.
func Typed[T Command](fn func(ctx context.Context, cmd T) (Result, error)) Handler {
	return HandlerFunc(func(ctx context.Context, cmd Command) (Result, error) {
		typed, ok := cmd.(T)
		if !ok {
			return Result{}, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
		}
		return fn(ctx, typed)
	})
}

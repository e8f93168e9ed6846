package services

import (
	"context"

	"github.com/google/uuid"

	"ecommerce-transactions/internal/commands"
	"ecommerce-transactions/internal/domain/transaction"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

type EventReader interface {
	ReadOrdered(ctx context.Context, transactionID uuid.UUID) ([]transaction.Event, error)
}

// TransactionService is the entry point used by the HTTP layer and the
// workers. Writes go through the command bus, reads replay the event log.
type TransactionService struct {
	bus    *commands.Bus
	events EventReader
}

func NewTransactionService(bus *commands.Bus, events EventReader) *TransactionService {
	if bus == nil {
		bus = commands.NewBus()
	}
	return &TransactionService{bus: bus, events: events}
}

type Activation struct {
	Transaction transaction.Transaction
	AuthToken   string
}

func (s *TransactionService) Activate(ctx context.Context, cmd *commands.ActivateTransaction) (Activation, error) {
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		return Activation{}, err
	}
	out := Activation{Transaction: res.Transaction}
	if p, ok := res.Payload.(commands.ActivationResult); ok {
		out.AuthToken = p.AuthToken
	}
	return out, nil
}

// Get rebuilds the transaction from its full event log.
func (s *TransactionService) Get(ctx context.Context, id uuid.UUID) (transaction.Transaction, error) {
	evs, err := s.events.ReadOrdered(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if len(evs) == 0 {
		return transaction.Transaction{}, ecommerce_errors.ErrTransactionNotFound
	}
	return transaction.Fold(evs)
}

func (s *TransactionService) RequestAuthorization(ctx context.Context, cmd *commands.RequestAuthorization) (transaction.Transaction, commands.AuthorizationResult, error) {
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		return res.Transaction, commands.AuthorizationResult{}, err
	}
	auth, _ := res.Payload.(commands.AuthorizationResult)
	return res.Transaction, auth, nil
}

func (s *TransactionService) UpdateAuthorization(ctx context.Context, cmd *commands.UpdateAuthorization) (transaction.Transaction, error) {
	res, err := s.bus.Execute(ctx, cmd)
	return res.Transaction, err
}

func (s *TransactionService) AddUserReceipt(ctx context.Context, cmd *commands.AddUserReceipt) (transaction.Transaction, error) {
	res, err := s.bus.Execute(ctx, cmd)
	return res.Transaction, err
}

func (s *TransactionService) Cancel(ctx context.Context, id uuid.UUID) (transaction.Transaction, error) {
	res, err := s.bus.Execute(ctx, &commands.CancelTransaction{TransactionID: id})
	return res.Transaction, err
}

// Execute runs any command. Workers use it for saga steps.
func (s *TransactionService) Execute(ctx context.Context, cmd commands.Command) (commands.Result, error) {
	return s.bus.Execute(ctx, cmd)
}

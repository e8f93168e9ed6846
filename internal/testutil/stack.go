package testutil

import (
	"testing"
	"time"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/auth"
	"ecommerce-transactions/internal/commands"
	"ecommerce-transactions/internal/psp"
	"ecommerce-transactions/internal/retry"
	"ecommerce-transactions/internal/services"
	"ecommerce-transactions/pkg/logger"
)

const StackTokenValidity = 900 * time.Second

// Stack is a TransactionService wired to in-memory collaborators.
type Stack struct {
	Store     *MemoryEventStore
	Cache     *MemoryPaymentCache
	Nodo      *FakeNodo
	Gateway   *FakeGateway
	Psp       *FakePsp
	Projector *RecordingProjector
	Clock     *Clock
	Tokens    *auth.TokenIssuer
	Service   *services.TransactionService
}

// NewStack sends follow-up messages to queue, so tests can pick a
// MemoryQueue or a real delayed queue.
func NewStack(t testing.TB, now time.Time, queue commands.Sender) *Stack {
	t.Helper()
	s := &Stack{
		Store:     NewMemoryEventStore(),
		Cache:     NewMemoryPaymentCache(),
		Nodo:      NewFakeNodo(),
		Gateway:   NewFakeGateway(),
		Psp:       &FakePsp{Bundles: []psp.Bundle{DefaultBundle()}},
		Projector: &RecordingProjector{},
		Clock:     NewClock(now),
		Tokens:    auth.NewTokenIssuer(config.JWTConfig{Secret: "stack-secret", Expiry: 30 * time.Minute}),
	}
	s.Tokens.WithClock(s.Clock.Now)

	log := logger.NewNop()
	scheduler := retry.NewScheduler(queue, retry.Policy{
		TokenValidity: StackTokenValidity,
		SafetyOffset:  60 * time.Second,
		RetryInterval: 120 * time.Second,
	}, log).WithClock(s.Clock.Now)

	handlers := commands.NewHandlers(commands.Deps{
		Store:     s.Store,
		Outbox:    s.Store,
		Cache:     s.Cache,
		Nodo:      s.Nodo,
		Gateway:   s.Gateway,
		Psp:       s.Psp,
		Queue:     queue,
		Tokens:    s.Tokens,
		Projector: s.Projector,
		Retry:     scheduler,
		Log:       log,
	}, commands.Settings{
		TokenValidity:    StackTokenValidity,
		ActivationFanout: 2,
		IssuerFiscalCode: "00000000000",
		MessageTTL:       24 * time.Hour,
		OutboxRelayDelay: 10 * time.Second,
		RefundableErrors: []string{"Node did not receive RPT yet"},
	}).WithClock(s.Clock.Now)

	bus := commands.NewBus()
	handlers.Register(bus)
	s.Service = services.NewTransactionService(bus, s.Store)
	return s
}

package commands_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/auth"
	"ecommerce-transactions/internal/commands"
	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/psp"
	"ecommerce-transactions/internal/retry"
	"ecommerce-transactions/internal/testutil"
	"ecommerce-transactions/pkg/logger"
)

var start = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

const tokenValidity = 900 * time.Second

type harness struct {
	store     *testutil.MemoryEventStore
	cache     *testutil.MemoryPaymentCache
	queue     *testutil.MemoryQueue
	nodo      *testutil.FakeNodo
	gateway   *testutil.FakeGateway
	psp       *testutil.FakePsp
	projector *testutil.RecordingProjector
	clock     *testutil.Clock
	tokens    *auth.TokenIssuer
	bus       *commands.Bus
}

func newHarness(t *testing.T, seed ...transaction.Event) *harness {
	t.Helper()
	h := &harness{
		store:     testutil.NewMemoryEventStore(seed...),
		cache:     testutil.NewMemoryPaymentCache(),
		queue:     testutil.NewMemoryQueue(),
		nodo:      testutil.NewFakeNodo(),
		gateway:   testutil.NewFakeGateway(),
		psp:       &testutil.FakePsp{},
		projector: &testutil.RecordingProjector{},
		clock:     testutil.NewClock(start.Add(5 * time.Minute)),
		tokens:    auth.NewTokenIssuer(config.JWTConfig{Secret: "test-secret", Expiry: 30 * time.Minute}),
	}
	h.psp.Bundles = []psp.Bundle{testutil.DefaultBundle()}

	log := logger.NewNop()
	scheduler := retry.NewScheduler(h.queue, retry.Policy{
		TokenValidity: tokenValidity,
		SafetyOffset:  60 * time.Second,
		RetryInterval: 120 * time.Second,
	}, log).WithClock(h.clock.Now)

	handlers := commands.NewHandlers(commands.Deps{
		Store:     h.store,
		Outbox:    h.store,
		Cache:     h.cache,
		Nodo:      h.nodo,
		Gateway:   h.gateway,
		Psp:       h.psp,
		Queue:     h.queue,
		Tokens:    h.tokens,
		Projector: h.projector,
		Retry:     scheduler,
		Log:       log,
	}, commands.Settings{
		TokenValidity:    tokenValidity,
		ActivationFanout: 4,
		IssuerFiscalCode: "00000000000",
		MessageTTL:       24 * time.Hour,
		OutboxRelayDelay: 10 * time.Second,
		RefundableErrors: []string{"Node did not receive RPT yet"},
	}).WithClock(h.clock.Now)

	h.bus = commands.NewBus()
	handlers.Register(h.bus)
	return h
}

func (h *harness) status(t *testing.T, id uuid.UUID) transaction.Status {
	t.Helper()
	tx, err := transaction.Fold(h.store.Events(id))
	require.NoError(t, err)
	return tx.Status
}

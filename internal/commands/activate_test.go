package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-transactions/internal/commands"
	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/nodo"
	"ecommerce-transactions/internal/testutil"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

func activateCommand(rptIDs ...transaction.RptID) *commands.ActivateTransaction {
	cmd := &commands.ActivateTransaction{Email: "user@example.com", ClientID: transaction.ClientCheckout}
	for i, id := range rptIDs {
		cmd.Notices = append(cmd.Notices, commands.NoticeRequest{RptID: id, Amount: int64(1000 + i)})
	}
	return cmd
}

func TestActivateTransaction(t *testing.T) {
	h := newHarness(t)

	res, err := h.bus.Execute(context.Background(), activateCommand(testutil.RptID1, testutil.RptID2))
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Equal(t, transaction.EventActivated, res.Events[0].Code)
	assert.Equal(t, transaction.StatusActivated, res.Transaction.Status)
	assert.Equal(t, int64(2001), res.Transaction.Amount())
	assert.Equal(t, tokenValidity, res.Transaction.PaymentTokenValidity)
	assert.Len(t, h.nodo.Activations(), 2)

	payload, ok := res.Payload.(commands.ActivationResult)
	require.True(t, ok)
	claims, err := h.tokens.Parse(payload.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, res.AggregateID, claims.TransactionID)

	for _, n := range res.Transaction.PaymentNotices {
		assert.True(t, n.PaymentToken.Valid())
		assert.True(t, n.IdempotencyKey.Valid())
		cached, err := h.cache.Get(context.Background(), n.RptID)
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.Equal(t, n.PaymentToken, cached.PaymentToken)
		assert.Equal(t, h.clock.Now().UTC(), cached.ActivationDate)
	}

	msgs := h.queue.Messages(events.QueueTransactionActivated)
	require.Len(t, msgs, 1)
	assert.Equal(t, tokenValidity, msgs[0].Visibility)
	assert.Equal(t, res.AggregateID, msgs[0].Envelope.AggregateID)
	assert.Len(t, h.projector.Projected(), 1)
}

func TestActivateReusesCachedToken(t *testing.T) {
	h := newHarness(t)
	activatedAt := h.clock.Now().Add(-2 * time.Minute)
	require.NoError(t, h.cache.Put(context.Background(), transaction.PaymentRequestInfo{
		RptID:          testutil.RptID1,
		Amount:         1000,
		IdempotencyKey: "00000000000_cachedkey1",
		PaymentToken:   "cached-token",
		ActivationDate: activatedAt,
	}))

	res, err := h.bus.Execute(context.Background(), activateCommand(testutil.RptID1))
	require.NoError(t, err)

	assert.Empty(t, h.nodo.Activations())
	require.Len(t, res.Transaction.PaymentNotices, 1)
	assert.Equal(t, transaction.PaymentToken("cached-token"), res.Transaction.PaymentNotices[0].PaymentToken)
	assert.Equal(t, transaction.IdempotencyKey("00000000000_cachedkey1"), res.Transaction.PaymentNotices[0].IdempotencyKey)
}

func TestActivateReplacesInvalidIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cache.Put(context.Background(), transaction.PaymentRequestInfo{
		RptID:          testutil.RptID1,
		IdempotencyKey: "broken",
	}))

	_, err := h.bus.Execute(context.Background(), activateCommand(testutil.RptID1))
	require.NoError(t, err)

	calls := h.nodo.Activations()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].IdempotencyKey.Valid())
	assert.NotEqual(t, transaction.IdempotencyKey("broken"), calls[0].IdempotencyKey)
}

func TestConcurrentActivationsConvergeOnOneKey(t *testing.T) {
	h := newHarness(t)
	const callers = 8

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens = make(map[transaction.PaymentToken]bool)
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.bus.Execute(context.Background(), activateCommand(testutil.RptID1))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			tokens[res.Transaction.PaymentNotices[0].PaymentToken] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, tokens, 1, "all callers share one payment token")
	keys := make(map[transaction.IdempotencyKey]bool)
	for _, call := range h.nodo.Activations() {
		keys[call.IdempotencyKey] = true
	}
	assert.Len(t, keys, 1, "node only ever sees one idempotency key")
}

func TestActivateNodoFaultIsFatal(t *testing.T) {
	h := newHarness(t)
	h.nodo.ActivateFunc = func(nodo.ActivateRequest) (nodo.ActivateResponse, error) {
		return nodo.ActivateResponse{}, &ecommerce_errors.NodoError{FaultCode: "PPT_PAGAMENTO_IN_CORSO"}
	}

	_, err := h.bus.Execute(context.Background(), activateCommand(testutil.RptID1))

	var nodoErr *ecommerce_errors.NodoError
	require.True(t, errors.As(err, &nodoErr))
	assert.True(t, nodoErr.Duplicate())
	assert.Empty(t, h.queue.Messages(""))
	assert.Empty(t, h.projector.Projected())

	cached, err := h.cache.Get(context.Background(), testutil.RptID1)
	require.NoError(t, err)
	require.NotNil(t, cached, "key stays cached for the next attempt")
	assert.False(t, cached.Activated())
}

func TestActivateValidation(t *testing.T) {
	tests := []struct {
		name string
		cmd  *commands.ActivateTransaction
	}{
		{name: "no notices", cmd: activateCommand()},
		{name: "malformed rpt id", cmd: activateCommand("123")},
		{name: "duplicate notice", cmd: activateCommand(testutil.RptID1, testutil.RptID1)},
		{name: "bad email", cmd: &commands.ActivateTransaction{
			Notices:  []commands.NoticeRequest{{RptID: testutil.RptID1, Amount: 100}},
			Email:    "not-an-email",
			ClientID: transaction.ClientCheckout,
		}},
		{name: "unknown client", cmd: &commands.ActivateTransaction{
			Notices:  []commands.NoticeRequest{{RptID: testutil.RptID1, Amount: 100}},
			Email:    "user@example.com",
			ClientID: "KIOSK",
		}},
	}

	h := newHarness(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.bus.Execute(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, ecommerce_errors.ErrInvalidRequest)
		})
	}
	assert.Empty(t, h.nodo.Activations())
}

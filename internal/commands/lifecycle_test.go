package commands_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-transactions/internal/commands"
	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/gateway"
	"ecommerce-transactions/internal/nodo"
	"ecommerce-transactions/internal/testutil"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

func refundRequestedLog() *testutil.EventLog {
	return testutil.NewEventLog(start).
		Authorized(transaction.OutcomeOK).
		ClosureFailed().
		Add(transaction.RefundRequestedData{StatusBeforeRefund: transaction.StatusClosureFailed, Reason: "node closure KO"})
}

func TestExecuteRefund(t *testing.T) {
	log := refundRequestedLog()
	h := newHarness(t, log.Events()...)

	res, err := h.bus.Execute(context.Background(), &commands.ExecuteRefund{TransactionID: log.ID()})
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusRefunded, res.Transaction.Status)
	refunds := h.gateway.Refunds()
	require.Len(t, refunds, 1)
	assert.Equal(t, int64(1350), refunds[0].Amount)
	assert.Equal(t, "auth-req-1", refunds[0].AuthorizationRequestID)
	assert.Equal(t, transaction.GatewayXPay, refunds[0].Gateway)
}

func TestExecuteRefundFailureIsRecordedOnce(t *testing.T) {
	log := refundRequestedLog()
	h := newHarness(t, log.Events()...)
	h.gateway.RefundFunc = func(gateway.RefundRequest) (gateway.RefundResponse, error) {
		return gateway.RefundResponse{}, &ecommerce_errors.GatewayError{Op: "refund", StatusCode: http.StatusServiceUnavailable}
	}

	for range 2 {
		_, err := h.bus.Execute(context.Background(), &commands.ExecuteRefund{TransactionID: log.ID()})
		assert.Error(t, err)
	}
	assert.Equal(t, 1, h.store.Count(log.ID(), transaction.EventRefundError))
	assert.Equal(t, transaction.StatusRefundError, h.status(t, log.ID()))

	h.gateway.RefundFunc = nil
	res, err := h.bus.Execute(context.Background(), &commands.ExecuteRefund{TransactionID: log.ID()})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusRefunded, res.Transaction.Status)
}

func TestRequestRefundResendsPendingMessage(t *testing.T) {
	log := refundRequestedLog()
	h := newHarness(t, log.Events()...)

	_, err := h.bus.Execute(context.Background(), &commands.RequestRefund{TransactionID: log.ID(), Reason: "operator"})
	assert.ErrorIs(t, err, ecommerce_errors.ErrAlreadyProcessed)

	assert.Equal(t, 1, h.store.Count(log.ID(), transaction.EventRefundRequested))
	assert.Len(t, h.queue.Messages(events.QueueRefund), 1)
}

func TestUserReceipt(t *testing.T) {
	t.Run("OK notifies", func(t *testing.T) {
		log := testutil.NewEventLog(start).Authorized(transaction.OutcomeOK).ClosedOK()
		h := newHarness(t, log.Events()...)

		res, err := h.bus.Execute(context.Background(), &commands.AddUserReceipt{
			TransactionID: log.ID(),
			Outcome:       transaction.OutcomeOK,
			Language:      "it",
		})
		require.NoError(t, err)

		assert.Equal(t, transaction.StatusNotifiedOk, res.Transaction.Status)
		assert.True(t, res.Transaction.Status.Final())
		assert.Len(t, h.queue.Messages(events.QueueUserReceipt), 1)
		assert.Empty(t, h.queue.Messages(events.QueueRefund))
	})

	t.Run("KO refunds", func(t *testing.T) {
		log := testutil.NewEventLog(start).Authorized(transaction.OutcomeOK).ClosedOK()
		h := newHarness(t, log.Events()...)

		res, err := h.bus.Execute(context.Background(), &commands.AddUserReceipt{
			TransactionID: log.ID(),
			Outcome:       transaction.OutcomeKO,
		})
		require.NoError(t, err)

		assert.Equal(t, transaction.StatusRefundRequested, res.Transaction.Status)
		assert.Equal(t, transaction.StatusNotifiedKo, res.Transaction.Refund.StatusBeforeRefund)
		assert.Len(t, h.queue.Messages(events.QueueUserReceipt), 1)
		assert.Len(t, h.queue.Messages(events.QueueRefund), 1)
	})
}

func TestCancelAndRelease(t *testing.T) {
	log := testutil.NewEventLog(start)
	h := newHarness(t, log.Events()...)

	res, err := h.bus.Execute(context.Background(), &commands.CancelTransaction{TransactionID: log.ID()})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCanceled, res.Transaction.Status)
	require.Len(t, h.queue.Messages(events.QueueCancellation), 1)

	res, err = h.bus.Execute(context.Background(), &commands.ReleaseCancellation{TransactionID: log.ID()})
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	assert.Equal(t, transaction.StatusCanceled, h.status(t, log.ID()))

	closures := h.nodo.Closures()
	require.Len(t, closures, 1)
	assert.Equal(t, transaction.OutcomeKO, closures[0].Outcome)
}

func TestReleaseCancellationRetries(t *testing.T) {
	unavailable := func(nodo.ClosePaymentRequest) (nodo.ClosePaymentResponse, error) {
		return nodo.ClosePaymentResponse{}, &ecommerce_errors.GatewayError{Op: "closePayment", StatusCode: http.StatusBadGateway}
	}

	t.Run("within window", func(t *testing.T) {
		log := testutil.NewEventLog(start).Canceled()
		h := newHarness(t, log.Events()...)
		h.nodo.ClosePaymentFunc = unavailable

		_, err := h.bus.Execute(context.Background(), &commands.ReleaseCancellation{TransactionID: log.ID()})
		require.NoError(t, err)

		msgs := h.queue.Messages(events.QueueCancellation)
		require.Len(t, msgs, 1)
		assert.Equal(t, 1, msgs[0].Envelope.RetryCount)
		assert.Equal(t, transaction.StatusCanceled, h.status(t, log.ID()))
	})

	t.Run("window exhausted", func(t *testing.T) {
		log := testutil.NewEventLog(start).Canceled()
		h := newHarness(t, log.Events()...)
		h.nodo.ClosePaymentFunc = unavailable
		h.clock.Set(start.Add(tokenValidity))

		res, err := h.bus.Execute(context.Background(), &commands.ReleaseCancellation{TransactionID: log.ID(), Attempt: 3})
		require.NoError(t, err)
		assert.Equal(t, transaction.StatusCancellationExpired, res.Transaction.Status)
		assert.Empty(t, h.queue.Messages(events.QueueCancellation))
	})
}

func TestExpireTransaction(t *testing.T) {
	tests := []struct {
		name       string
		log        *testutil.EventLog
		wantStatus transaction.Status
		wantRefund bool
	}{
		{
			name:       "never authorized",
			log:        testutil.NewEventLog(start),
			wantStatus: transaction.StatusExpiredNotAuthorized,
		},
		{
			name:       "authorization outcome never arrived",
			log:        testutil.NewEventLog(start).AuthorizationRequested(),
			wantStatus: transaction.StatusRefundRequested,
			wantRefund: true,
		},
		{
			name:       "closure kept failing after authorization",
			log:        testutil.NewEventLog(start).Authorized(transaction.OutcomeOK).ClosureError(),
			wantStatus: transaction.StatusRefundRequested,
			wantRefund: true,
		},
		{
			name:       "declined authorization",
			log:        testutil.NewEventLog(start).Authorized(transaction.OutcomeKO),
			wantStatus: transaction.StatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.log.Events()...)
			h.clock.Set(start.Add(tokenValidity))

			res, err := h.bus.Execute(context.Background(), &commands.ExpireTransaction{TransactionID: tt.log.ID()})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, res.Transaction.Status)
			assert.Equal(t, 1, h.store.Count(tt.log.ID(), transaction.EventExpired))
			assert.Equal(t, tt.wantRefund, h.store.Count(tt.log.ID(), transaction.EventRefundRequested) == 1)
		})
	}
}

// Every handler invoked outside its source status reports AlreadyProcessed
// and leaves the log and the queues untouched.
func TestCommandGuardNeverMutatesLog(t *testing.T) {
	closed := func() *testutil.EventLog {
		return testutil.NewEventLog(start).Authorized(transaction.OutcomeOK).ClosedOK()
	}
	tests := []struct {
		name string
		log  *testutil.EventLog
		cmd  func(l *testutil.EventLog) commands.Command
	}{
		{
			name: "authorization after closure",
			log:  closed(),
			cmd:  func(l *testutil.EventLog) commands.Command { return authorizationCommand(l) },
		},
		{
			name: "authorization outcome before request",
			log:  testutil.NewEventLog(start),
			cmd: func(l *testutil.EventLog) commands.Command {
				return &commands.UpdateAuthorization{TransactionID: l.ID(), Outcome: transaction.OutcomeKO}
			},
		},
		{
			name: "closure before authorization",
			log:  testutil.NewEventLog(start),
			cmd:  func(l *testutil.EventLog) commands.Command { return &commands.SendClosure{TransactionID: l.ID()} },
		},
		{
			name: "closure after settlement without refund due",
			log:  closed(),
			cmd:  func(l *testutil.EventLog) commands.Command { return &commands.SendClosure{TransactionID: l.ID()} },
		},
		{
			name: "receipt before closure",
			log:  testutil.NewEventLog(start).Authorized(transaction.OutcomeOK),
			cmd: func(l *testutil.EventLog) commands.Command {
				return &commands.AddUserReceipt{TransactionID: l.ID(), Outcome: transaction.OutcomeOK}
			},
		},
		{
			name: "cancel after authorization request",
			log:  testutil.NewEventLog(start).AuthorizationRequested(),
			cmd:  func(l *testutil.EventLog) commands.Command { return &commands.CancelTransaction{TransactionID: l.ID()} },
		},
		{
			name: "release without cancellation",
			log:  testutil.NewEventLog(start),
			cmd:  func(l *testutil.EventLog) commands.Command { return &commands.ReleaseCancellation{TransactionID: l.ID()} },
		},
		{
			name: "refund execution without request",
			log:  closed(),
			cmd:  func(l *testutil.EventLog) commands.Command { return &commands.ExecuteRefund{TransactionID: l.ID()} },
		},
		{
			name: "refund request while activated",
			log:  testutil.NewEventLog(start),
			cmd: func(l *testutil.EventLog) commands.Command {
				return &commands.RequestRefund{TransactionID: l.ID(), Reason: "operator"}
			},
		},
		{
			name: "expiry after closure",
			log:  closed(),
			cmd:  func(l *testutil.EventLog) commands.Command { return &commands.ExpireTransaction{TransactionID: l.ID()} },
		},
		{
			name: "expiry while cancellation release pending",
			log:  testutil.NewEventLog(start).Canceled(),
			cmd:  func(l *testutil.EventLog) commands.Command { return &commands.ExpireTransaction{TransactionID: l.ID()} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.log.Events()...)
			before := h.store.Events(tt.log.ID())

			_, err := h.bus.Execute(context.Background(), tt.cmd(tt.log))

			assert.ErrorIs(t, err, ecommerce_errors.ErrAlreadyProcessed)
			var processed *ecommerce_errors.AlreadyProcessedError
			require.True(t, errors.As(err, &processed))
			assert.Equal(t, tt.log.ID().String(), processed.TransactionID)
			assert.Equal(t, before, h.store.Events(tt.log.ID()))
			assert.Empty(t, h.queue.Messages(""))
			assert.Empty(t, h.nodo.Closures())
			assert.Empty(t, h.gateway.Refunds())
		})
	}
}

func TestProjectionFailureDoesNotFailCommand(t *testing.T) {
	log := testutil.NewEventLog(start)
	h := newHarness(t, log.Events()...)
	h.projector.Err = errors.New("view store down")

	res, err := h.bus.Execute(context.Background(), &commands.CancelTransaction{TransactionID: log.ID()})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCanceled, res.Transaction.Status)
	require.Len(t, h.projector.Projected(), 1)
}

func TestConcurrentClosuresAppendOnce(t *testing.T) {
	log := testutil.NewEventLog(start).Authorized(transaction.OutcomeOK)
	h := newHarness(t, log.Events()...)
	release := make(chan struct{})
	h.nodo.ClosePaymentFunc = func(nodo.ClosePaymentRequest) (nodo.ClosePaymentResponse, error) {
		<-release
		return nodo.ClosePaymentResponse{Outcome: transaction.OutcomeOK}, nil
	}

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := h.bus.Execute(context.Background(), &commands.SendClosure{TransactionID: log.ID()})
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return len(h.nodo.Closures()) == 2 }, time.Second, time.Millisecond)
	close(release)

	var conflicts int
	for range 2 {
		if err := <-errs; err != nil {
			assert.ErrorIs(t, err, ecommerce_errors.ErrConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, h.store.Count(log.ID(), transaction.EventClosed))
}

package commands

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/nodo"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

func (h *Handlers) CancelTransaction(ctx context.Context, cmd *CancelTransaction) (Result, error) {
	ctx = ctxFor(ctx, cmd.TransactionID)
	tx, err := h.load(ctx, cmd.TransactionID)
	if err != nil {
		return Result{}, err
	}
	if err := guard(tx, transaction.StatusActivated); err != nil {
		return Result{Transaction: tx}, err
	}
	return h.commit(ctx, tx, transaction.UserCanceledData{})
}

// ReleaseCancellation closes the payment as KO so the node frees the notices.
// Failures are retried within the token validity window; when the window or
// the attempts run out the transaction becomes CancellationExpired.
func (h *Handlers) ReleaseCancellation(ctx context.Context, cmd *ReleaseCancellation) (Result, error) {
	ctx = ctxFor(ctx, cmd.TransactionID)
	tx, err := h.load(ctx, cmd.TransactionID)
	if err != nil {
		return Result{}, err
	}
	if err := guard(tx, transaction.StatusCanceled); err != nil {
		return Result{Transaction: tx}, err
	}

	_, err = h.Nodo.ClosePayment(ctx, nodo.ClosePaymentRequest{
		TransactionID: tx.ID,
		PaymentTokens: tx.PaymentTokens(),
		Outcome:       transaction.OutcomeKO,
		Timestamp:     h.clock(),
	})
	if err == nil {
		h.Log.Info(ctx, "payment notices released")
		return Result{AggregateID: tx.ID.String(), Transaction: tx}, nil
	}

	var gwErr *ecommerce_errors.GatewayError
	if errors.As(err, &gwErr) && gwErr.ClientError() {
		h.Log.Warn(ctx, "node refused cancellation release", zap.Error(err))
		return h.commit(ctx, tx, transaction.ExpiredData{StatusBeforeExpiry: tx.Status})
	}

	decision, serr := h.Retry.Schedule(ctx, events.QueueCancellation, tx, transaction.EventUserCanceled, cmd.Attempt+1)
	if serr != nil {
		return Result{Transaction: tx}, serr
	}
	if !decision.Scheduled {
		return h.commit(ctx, tx, transaction.ExpiredData{StatusBeforeExpiry: tx.Status})
	}
	return Result{AggregateID: tx.ID.String(), Transaction: tx, Payload: decision}, nil
}

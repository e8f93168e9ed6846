package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/gateway"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

func (h *Handlers) RequestRefund(ctx context.Context, cmd *RequestRefund) (Result, error) {
	ctx = ctxFor(ctx, cmd.TransactionID)
	tx, err := h.load(ctx, cmd.TransactionID)
	if err != nil {
		return Result{}, err
	}
	return h.requestRefund(ctx, tx, cmd.Reason)
}

// requestRefund records at most one RefundRequested per transaction. When the
// event exists but the refund never ran, its message is sent again.
func (h *Handlers) requestRefund(ctx context.Context, tx transaction.Transaction, reason string) (Result, error) {
	existing, err := h.Store.ReadByTransactionAndEventType(ctx, tx.ID, transaction.EventRefundRequested)
	if err != nil {
		return Result{Transaction: tx}, err
	}
	if existing != nil || tx.Refund != nil {
		if existing != nil && tx.Status == transaction.StatusRefundRequested {
			if err := h.enqueue(ctx, events.QueueRefund, tx, *existing); err != nil {
				return Result{Transaction: tx}, err
			}
			h.Log.Info(ctx, "refund message re-sent")
		}
		return Result{Transaction: tx}, alreadyProcessed(tx)
	}
	if !transaction.CanApply(tx.Status, transaction.EventRefundRequested) {
		return Result{Transaction: tx}, alreadyProcessed(tx)
	}

	h.Log.Info(ctx, "refund requested", zap.String("reason", reason))
	return h.commit(ctx, tx, transaction.RefundRequestedData{StatusBeforeRefund: tx.Status, Reason: reason})
}

// ExecuteRefund asks the gateway to return the authorized amount. A failed
// first attempt is recorded as RefundError and returned so the message is
// delivered again.
func (h *Handlers) ExecuteRefund(ctx context.Context, cmd *ExecuteRefund) (Result, error) {
	ctx = ctxFor(ctx, cmd.TransactionID)
	tx, err := h.load(ctx, cmd.TransactionID)
	if err != nil {
		return Result{}, err
	}
	if err := guard(tx, transaction.StatusRefundRequested, transaction.StatusRefundError); err != nil {
		return Result{Transaction: tx}, err
	}
	auth := tx.Authorization
	if auth == nil {
		return Result{Transaction: tx}, ecommerce_errors.Invalid("transaction %s has no authorization to refund", tx.ID)
	}

	refunded, err := h.Gateway.Refund(ctx, gateway.RefundRequest{
		TransactionID:          tx.ID,
		Gateway:                auth.Gateway,
		AuthorizationRequestID: auth.AuthorizationRequestID,
		Amount:                 auth.Amount + auth.Fee,
	})
	if err != nil {
		res := Result{AggregateID: tx.ID.String(), Transaction: tx}
		if tx.Status == transaction.StatusRefundRequested {
			recorded, commitErr := h.commit(ctx, tx, transaction.RefundErrorData{Description: err.Error()})
			if commitErr != nil {
				return recorded, commitErr
			}
			res = recorded
		}
		return res, fmt.Errorf("refund: %w", err)
	}

	return h.commit(ctx, tx, transaction.RefundedData{RefundID: refunded.RefundID})
}

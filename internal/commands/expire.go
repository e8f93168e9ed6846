package commands

import (
	"context"

	"ecommerce-transactions/internal/domain/transaction"
)

// ExpireTransaction runs when the activation message becomes visible at token
// expiry. Transactions that already moved past the node interaction, and
// canceled ones whose release is still in progress, are left alone.
func (h *Handlers) ExpireTransaction(ctx context.Context, cmd *ExpireTransaction) (Result, error) {
	ctx = ctxFor(ctx, cmd.TransactionID)
	tx, err := h.load(ctx, cmd.TransactionID)
	if err != nil {
		return Result{}, err
	}
	if err := guard(tx,
		transaction.StatusActivated,
		transaction.StatusAuthorizationRequested,
		transaction.StatusAuthorizationCompleted,
		transaction.StatusClosureRequested,
		transaction.StatusClosureError,
	); err != nil {
		return Result{Transaction: tx}, err
	}

	res, err := h.commit(ctx, tx, transaction.ExpiredData{StatusBeforeExpiry: tx.Status})
	if err != nil {
		return res, err
	}
	if reason := res.Transaction.RefundReason(); reason != "" {
		refund, err := h.requestRefund(ctx, res.Transaction, reason)
		return res.merge(refund), err
	}
	return res, nil
}

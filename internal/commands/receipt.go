package commands

import (
	"context"

	"ecommerce-transactions/internal/domain/transaction"
)

// AddUserReceipt records the node's payment result notification. A KO
// receipt means the payment did not settle and the user is refunded.
func (h *Handlers) AddUserReceipt(ctx context.Context, cmd *AddUserReceipt) (Result, error) {
	ctx = ctxFor(ctx, cmd.TransactionID)
	tx, err := h.load(ctx, cmd.TransactionID)
	if err != nil {
		return Result{}, err
	}
	if err := guard(tx, transaction.StatusClosed); err != nil {
		return Result{Transaction: tx}, err
	}

	paymentDate := cmd.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = h.clock()
	}
	res, err := h.commit(ctx, tx, transaction.UserReceiptRequestedData{
		Outcome:     cmd.Outcome,
		PaymentDate: paymentDate.UTC(),
		Language:    cmd.Language,
	})
	if err != nil {
		return res, err
	}

	if reason := res.Transaction.RefundReason(); reason != "" {
		refund, err := h.requestRefund(ctx, res.Transaction, reason)
		return res.merge(refund), err
	}
	return res, nil
}

package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/gateway"
	"ecommerce-transactions/internal/psp"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

func (h *Handlers) RequestAuthorization(ctx context.Context, cmd *RequestAuthorization) (Result, error) {
	ctx = ctxFor(ctx, cmd.TransactionID)
	tx, err := h.load(ctx, cmd.TransactionID)
	if err != nil {
		return Result{}, err
	}
	if err := guard(tx, transaction.StatusActivated); err != nil {
		return Result{Transaction: tx}, err
	}
	if total := tx.Amount(); cmd.Amount != total {
		return Result{Transaction: tx}, ecommerce_errors.Invalid("amount %d does not match payment notices total %d", cmd.Amount, total)
	}

	bundles, err := h.Psp.CalculateFees(ctx, psp.FeeRequest{PaymentMethodID: cmd.PaymentMethodID, Amount: cmd.Amount})
	if err != nil {
		return Result{Transaction: tx}, fmt.Errorf("calculate fees: %w", err)
	}
	bundle, ok := psp.Match(bundles, cmd.PspID, cmd.Fee)
	if !ok {
		return Result{Transaction: tx}, fmt.Errorf("psp %s with fee %d: %w", cmd.PspID, cmd.Fee, ecommerce_errors.ErrUnsatisfiablePspRequest)
	}

	auth, err := h.Gateway.RequestAuthorization(ctx, gateway.AuthorizationRequest{
		TransactionID:       tx.ID,
		Gateway:             cmd.Gateway,
		Amount:              cmd.Amount,
		Fee:                 cmd.Fee,
		PaymentInstrumentID: cmd.PaymentInstrumentID,
		PspID:               cmd.PspID,
		Language:            cmd.Language,
		Details:             cmd.Details,
	})
	if err != nil {
		return Result{Transaction: tx}, err
	}

	res, err := h.commit(ctx, tx, transaction.AuthorizationRequestedData{
		Amount:                 cmd.Amount,
		Fee:                    cmd.Fee,
		PaymentInstrumentID:    cmd.PaymentInstrumentID,
		PspID:                  bundle.PspID,
		PaymentTypeCode:        bundle.PaymentTypeCode,
		BrokerName:             bundle.BrokerName,
		PspChannelCode:         bundle.ChannelCode,
		PspBusinessName:        bundle.PspBusinessName,
		PaymentMethodName:      cmd.PaymentMethodName,
		AuthorizationRequestID: auth.AuthorizationRequestID,
		Gateway:                cmd.Gateway,
	})
	if err != nil {
		return res, err
	}

	// Later activations of these notices must be priced again.
	for _, rptID := range tx.RptIDs() {
		if err := h.Cache.Delete(ctx, rptID); err != nil {
			h.Log.Warn(ctx, "idempotency cache invalidation failed", zap.String("rpt_id", rptID.String()), zap.Error(err))
		}
	}

	res.Payload = AuthorizationResult{
		AuthorizationRequestID: auth.AuthorizationRequestID,
		RedirectURL:            auth.RedirectURL,
	}
	return res, nil
}

// UpdateAuthorization records the gateway outcome and runs the closure saga
// on the aggregate it just produced.
func (h *Handlers) UpdateAuthorization(ctx context.Context, cmd *UpdateAuthorization) (Result, error) {
	ctx = ctxFor(ctx, cmd.TransactionID)
	tx, err := h.load(ctx, cmd.TransactionID)
	if err != nil {
		return Result{}, err
	}
	if err := guard(tx, transaction.StatusAuthorizationRequested); err != nil {
		return Result{Transaction: tx}, err
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = h.clock()
	}
	res, err := h.commit(ctx, tx, transaction.AuthorizationCompletedData{
		Result:            cmd.Outcome,
		AuthorizationCode: cmd.AuthorizationCode,
		ErrorCode:         cmd.ErrorCode,
		Timestamp:         timestamp.UTC(),
	})
	if err != nil {
		return res, err
	}

	completed := res.Transaction
	closure, err := h.SendClosure(ctx, &SendClosure{TransactionID: completed.ID, Transaction: &completed})
	return res.merge(closure), err
}

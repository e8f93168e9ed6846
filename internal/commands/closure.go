package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/nodo"
	"ecommerce-transactions/internal/repository"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

// RefundablePolicy decides which node client errors on closure still allow
// the authorized amount to be returned.
type RefundablePolicy struct {
	signatures []string
}

func NewRefundablePolicy(signatures []string) RefundablePolicy {
	var clean []string
	for _, s := range signatures {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	return RefundablePolicy{signatures: clean}
}

// Matches compares each signature with the error code, then the error detail.
func (p RefundablePolicy) Matches(err *ecommerce_errors.GatewayError) bool {
	for _, s := range p.signatures {
		if strings.EqualFold(err.Code, s) || strings.Contains(err.Detail, s) {
			return true
		}
	}
	return false
}

// SendClosure is the closure saga step. It is safe to run any number of
// times for a transaction: once Closed or ClosureFailed it only reconciles
// the refund and otherwise reports AlreadyProcessed.
func (h *Handlers) SendClosure(ctx context.Context, cmd *SendClosure) (Result, error) {
	ctx = ctxFor(ctx, cmd.TransactionID)
	tx, err := h.current(ctx, cmd.TransactionID, cmd.Transaction)
	if err != nil {
		return Result{}, err
	}

	switch tx.Status {
	case transaction.StatusClosed, transaction.StatusClosureFailed:
		return h.reconcileRefund(ctx, tx)
	case transaction.StatusAuthorizationCompleted, transaction.StatusClosureRequested, transaction.StatusClosureError:
	default:
		return Result{Transaction: tx}, alreadyProcessed(tx)
	}

	outcome := transaction.OutcomeKO
	if tx.AuthorizationOK() {
		outcome = transaction.OutcomeOK
	}
	req := nodo.ClosePaymentRequest{
		TransactionID: tx.ID,
		PaymentTokens: tx.PaymentTokens(),
		Outcome:       outcome,
		TotalAmount:   tx.Amount(),
		Timestamp:     h.clock(),
	}
	if a := tx.Authorization; a != nil {
		req.Fee = a.Fee
		req.PspID = a.PspID
		req.BrokerName = a.BrokerName
		req.ChannelCode = a.PspChannelCode
		req.PaymentTypeCode = a.PaymentTypeCode
	}
	if tx.AuthorizationResult != nil {
		req.AuthorizationCode = tx.AuthorizationResult.AuthorizationCode
	}

	closed, err := h.Nodo.ClosePayment(ctx, req)
	if err != nil {
		return h.closureFailed(ctx, tx, cmd.Attempt, err)
	}

	var data []transaction.EventData
	if tx.Status != transaction.StatusClosureRequested {
		data = append(data, transaction.ClosureRequestedData{Outcome: outcome})
	}
	if closed.Outcome == transaction.OutcomeOK {
		data = append(data, transaction.ClosedData{NodeOutcome: closed.Outcome})
	} else {
		data = append(data, transaction.ClosureFailedData{NodeOutcome: closed.Outcome})
	}
	res, err := h.commit(ctx, tx, data...)
	if err != nil {
		return res, err
	}

	if reason := res.Transaction.RefundReason(); reason != "" {
		refund, err := h.requestRefund(ctx, res.Transaction, reason)
		return res.merge(refund), err
	}
	return res, nil
}

// reconcileRefund covers a closure outcome that was recorded while the
// refund it requires was not.
func (h *Handlers) reconcileRefund(ctx context.Context, tx transaction.Transaction) (Result, error) {
	existing, err := h.Store.ReadByTransactionAndEventType(ctx, tx.ID, transaction.EventRefundRequested)
	if err != nil {
		return Result{Transaction: tx}, err
	}
	reason := tx.RefundReason()
	if existing != nil || reason == "" {
		return Result{Transaction: tx}, alreadyProcessed(tx)
	}
	return h.requestRefund(ctx, tx, reason)
}

func (h *Handlers) closureFailed(ctx context.Context, tx transaction.Transaction, attempt int, cause error) (Result, error) {
	failure := transaction.ClosureErrorData{Description: cause.Error()}
	var gwErr *ecommerce_errors.GatewayError
	if errors.As(cause, &gwErr) {
		failure.StatusCode = gwErr.StatusCode
		failure.ErrorCode = gwErr.Code
		if gwErr.Detail != "" {
			failure.Description = gwErr.Detail
		}
	}

	if gwErr != nil && gwErr.ClientError() {
		if !tx.AuthorizationOK() || !h.refundable.Matches(gwErr) {
			h.Log.Warn(ctx, "closure rejected by node", zap.Int("status", gwErr.StatusCode), zap.String("code", gwErr.Code))
			return Result{Transaction: tx}, ecommerce_errors.Unrecoverable(cause)
		}
		res := Result{AggregateID: tx.ID.String(), Transaction: tx}
		if tx.Status != transaction.StatusClosureError {
			var err error
			if res, err = h.commit(ctx, tx, failure); err != nil {
				return res, err
			}
		}
		refund, err := h.requestRefund(ctx, res.Transaction, "closure rejected: "+failure.Description)
		return res.merge(refund), err
	}

	// Retryable: only the first failure is recorded so the log keeps a
	// single ClosureError however many retries follow. The first retry is
	// committed with it through the outbox; later ones are sent directly by
	// the queue consumer, which redelivers when the send fails.
	h.Log.Warn(ctx, "closure failed", zap.Int("attempt", attempt+1), zap.Error(cause))
	if tx.Status != transaction.StatusClosureError {
		decision, env := h.Retry.Plan(ctx, events.QueueClosureRetry, tx, transaction.EventClosureError, attempt+1)
		var followUp []repository.OutboxMessage
		if env != nil {
			followUp = append(followUp, h.outboxMessage(*env, decision.Delay, h.clock()))
		}
		res, err := h.commitWith(ctx, tx, followUp, failure)
		if err != nil {
			return res, err
		}
		res.Payload = decision
		return res, nil
	}

	decision, err := h.Retry.Schedule(ctx, events.QueueClosureRetry, tx, transaction.EventClosureError, attempt+1)
	if err != nil {
		return Result{Transaction: tx}, fmt.Errorf("schedule closure retry: %w", err)
	}
	return Result{AggregateID: tx.ID.String(), Transaction: tx, Payload: decision}, nil
}

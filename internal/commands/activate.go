package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/nodo"
	"ecommerce-transactions/pkg/logger"
)

// Activate activates every notice at the node, at most ActivationFanout at a
// time, and records a single Activated event.
func (h *Handlers) Activate(ctx context.Context, cmd *ActivateTransaction) (Result, error) {
	id := uuid.New()
	ctx = ctxFor(ctx, id)

	notices := make([]transaction.PaymentNotice, len(cmd.Notices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.settings.ActivationFanout)
	for i, n := range cmd.Notices {
		g.Go(func() error {
			notice, err := h.activateNotice(gctx, n)
			if err != nil {
				return err
			}
			notices[i] = notice
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	token, err := h.Tokens.Issue(id)
	if err != nil {
		return Result{}, err
	}

	base := transaction.Empty()
	base.ID = id
	res, err := h.commit(ctx, base, transaction.ActivatedData{
		PaymentNotices:              notices,
		Email:                       cmd.Email,
		ClientID:                    cmd.ClientID,
		PaymentTokenValiditySeconds: int(h.settings.TokenValidity.Seconds()),
	})
	if err != nil {
		return res, err
	}
	res.Payload = ActivationResult{AuthToken: token}
	return res, nil
}

// activateNotice returns the activated notice for n. The idempotency key is
// stored before the node is called so concurrent activations of the same
// notice reuse it.
func (h *Handlers) activateNotice(ctx context.Context, n NoticeRequest) (transaction.PaymentNotice, error) {
	ctx = logger.WithRptID(ctx, n.RptID.String())

	info, err := h.Cache.Get(ctx, n.RptID)
	if err != nil {
		return transaction.PaymentNotice{}, err
	}
	if info == nil || !info.IdempotencyKey.Valid() {
		key, err := transaction.NewIdempotencyKey(h.settings.IssuerFiscalCode)
		if err != nil {
			return transaction.PaymentNotice{}, err
		}
		fresh := transaction.PaymentRequestInfo{RptID: n.RptID, Amount: n.Amount, IdempotencyKey: key}
		if info == nil {
			winner, err := h.Cache.PutIfAbsent(ctx, fresh)
			if err != nil {
				return transaction.PaymentNotice{}, err
			}
			fresh = winner
		} else if err := h.Cache.Put(ctx, fresh); err != nil {
			return transaction.PaymentNotice{}, err
		}
		info = &fresh
	}

	if info.Activated() {
		h.Log.Info(ctx, "payment notice already activated",
			zap.String("idempotency_key", string(info.IdempotencyKey)),
			zap.Duration("token_validity_left", info.RemainingValidity(h.settings.TokenValidity, h.clock())),
		)
		return info.Notice(), nil
	}

	activated, err := h.Nodo.Activate(ctx, nodo.ActivateRequest{
		RptID:          n.RptID,
		IdempotencyKey: info.IdempotencyKey,
		Amount:         n.Amount,
		TokenValidity:  h.settings.TokenValidity,
	})
	if err != nil {
		return transaction.PaymentNotice{}, fmt.Errorf("activate %s: %w", n.RptID, err)
	}

	updated := *info
	updated.PaymentToken = activated.PaymentToken
	updated.Amount = n.Amount
	if activated.Amount > 0 {
		updated.Amount = activated.Amount
	}
	updated.Description = activated.Description
	updated.CreditorName = activated.CreditorName
	updated.DueDate = activated.DueDate
	updated.ActivationDate = h.clock().UTC()
	if err := h.Cache.Put(ctx, updated); err != nil {
		return transaction.PaymentNotice{}, err
	}
	return updated.Notice(), nil
}

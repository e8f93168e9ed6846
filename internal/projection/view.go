// Package projection fans committed transaction events out to read models.
package projection

import (
	"context"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/repository"
)

// ViewProjector keeps transactions_view in step with the event log.
type ViewProjector struct {
	views repository.ViewRepository
}

func NewViewProjector(views repository.ViewRepository) *ViewProjector {
	return &ViewProjector{views: views}
}

func (p *ViewProjector) Project(ctx context.Context, tx transaction.Transaction, _ []transaction.Event) error {
	return p.views.Upsert(ctx, ToView(tx))
}

// ToView flattens the aggregate into its read model row.
func ToView(tx transaction.Transaction) repository.TransactionView {
	v := repository.TransactionView{
		TransactionID: tx.ID,
		Status:        string(tx.Status),
		Email:         tx.Email,
		ClientID:      string(tx.ClientID),
		Amount:        tx.Amount(),
		Version:       tx.Version,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
	for _, id := range tx.RptIDs() {
		v.RptIDs = append(v.RptIDs, id.String())
	}
	if a := tx.Authorization; a != nil {
		fee := a.Fee
		psp := a.PspID
		gw := string(a.Gateway)
		v.Fee = &fee
		v.PspID = &psp
		v.PaymentGateway = &gw
	}
	if r := tx.AuthorizationResult; r != nil {
		result := string(r.Result)
		v.AuthorizationResult = &result
	}
	if tx.NodeOutcome != "" {
		outcome := string(tx.NodeOutcome)
		v.NodeOutcome = &outcome
	}
	return v
}

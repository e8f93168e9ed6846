package projection

import (
	"context"
	"errors"

	"ecommerce-transactions/internal/domain/transaction"
)

type Projector interface {
	Project(ctx context.Context, tx transaction.Transaction, evs []transaction.Event) error
}

// Multi projects to every sink, even when an earlier one fails.
type Multi []Projector

func (m Multi) Project(ctx context.Context, tx transaction.Transaction, evs []transaction.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Project(ctx, tx, evs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

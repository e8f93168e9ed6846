package proxy

import (
	"context"
	"fmt"

	"ecommerce-transactions/internal/auth"
	"ecommerce-transactions/internal/commands"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

// AccessControl rejects transaction commands whose caller holds a token for
// a different transaction. Commands issued without claims, such as those of
// the queue workers, pass through.
type AccessControl struct{}

func NewAccessControl() *AccessControl {
	return &AccessControl{}
}

func (a *AccessControl) Authorize(ctx context.Context, cmd commands.Command) error {
	target, ok := cmd.(commands.TransactionCommand)
	if !ok {
		return nil
	}
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	if claims.TransactionID != target.TargetTransactionID().String() {
		return fmt.Errorf("%s on transaction %s: %w", cmd.CommandType(), target.TargetTransactionID(), ecommerce_errors.ErrForbidden)
	}
	return nil
}

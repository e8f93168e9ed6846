package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

// TransactionView is the read model row for a transaction.
type TransactionView struct {
	TransactionID       uuid.UUID
	Status              string
	Email               string
	ClientID            string
	RptIDs              []string
	Amount              int64
	Fee                 *int64
	PspID               *string
	PaymentGateway      *string
	AuthorizationResult *string
	NodeOutcome         *string
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type PostgresViewRepository struct {
	db DBTX
}

func NewViewRepository(db DBTX) *PostgresViewRepository {
	return &PostgresViewRepository{db: db}
}

// Upsert writes v unless a row with a newer or equal version exists.
func (r *PostgresViewRepository) Upsert(ctx context.Context, v TransactionView) error {
	_, err := r.db.Exec(ctx, `INSERT INTO transactions_view
		(transaction_id, status, email, client_id, rpt_ids, amount, fee, psp_id, payment_gateway,
		 authorization_result, node_outcome, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (transaction_id) DO UPDATE SET
			status = EXCLUDED.status,
			fee = EXCLUDED.fee,
			psp_id = EXCLUDED.psp_id,
			payment_gateway = EXCLUDED.payment_gateway,
			authorization_result = EXCLUDED.authorization_result,
			node_outcome = EXCLUDED.node_outcome,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
		WHERE transactions_view.version < EXCLUDED.version`,
		v.TransactionID, v.Status, v.Email, v.ClientID, v.RptIDs, v.Amount, v.Fee, v.PspID, v.PaymentGateway,
		v.AuthorizationResult, v.NodeOutcome, v.Version, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert view %s: %w", v.TransactionID, err)
	}
	return nil
}

func (r *PostgresViewRepository) GetByID(ctx context.Context, transactionID uuid.UUID) (TransactionView, error) {
	var v TransactionView
	err := r.db.QueryRow(ctx, `SELECT transaction_id, status, email, client_id, rpt_ids, amount, fee, psp_id,
		payment_gateway, authorization_result, node_outcome, version, created_at, updated_at
		FROM transactions_view WHERE transaction_id = $1`, transactionID).
		Scan(&v.TransactionID, &v.Status, &v.Email, &v.ClientID, &v.RptIDs, &v.Amount, &v.Fee, &v.PspID,
			&v.PaymentGateway, &v.AuthorizationResult, &v.NodeOutcome, &v.Version, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransactionView{}, ecommerce_errors.ErrNotFound
		}
		return TransactionView{}, fmt.Errorf("get view %s: %w", transactionID, err)
	}
	return v, nil
}

package repository_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/repository"
	"ecommerce-transactions/internal/testutil"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

func TestEventStoreAppendAndReplay(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	store := repository.NewEventStore(pool)
	ctx := context.Background()

	events := testutil.NewEventLog(time.Now().Truncate(time.Millisecond)).
		Authorized(transaction.OutcomeOK).
		ClosedOK().
		Events()
	txID := events[0].TransactionID

	require.NoError(t, store.Append(ctx, 0, events[:1]...))
	require.NoError(t, store.Append(ctx, 1, events[1:]...))

	got, err := store.ReadOrdered(ctx, txID)
	require.NoError(t, err)
	require.Len(t, got, len(events))
	for i := range events {
		assert.Equal(t, events[i].ID, got[i].ID)
		assert.Equal(t, events[i].Code, got[i].Code)
		assert.Equal(t, events[i].Data, got[i].Data)
	}

	tx, err := transaction.Fold(got)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusClosed, tx.Status)

	closed, err := store.ReadByTransactionAndEventType(ctx, txID, transaction.EventClosed)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, transaction.EventClosed, closed.Code)

	refund, err := store.ReadByTransactionAndEventType(ctx, txID, transaction.EventRefundRequested)
	require.NoError(t, err)
	assert.Nil(t, refund)
}

func TestEventStoreRejectsStaleVersion(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	store := repository.NewEventStore(pool)
	ctx := context.Background()

	events := testutil.NewEventLog(time.Now()).Events()
	require.NoError(t, store.Append(ctx, 0, events...))

	cancel := transaction.NewEvent(events[0].TransactionID, transaction.UserCanceledData{}, time.Now())
	err := store.Append(ctx, 0, cancel)
	assert.ErrorIs(t, err, ecommerce_errors.ErrConflict)

	require.NoError(t, store.Append(ctx, repository.AnyVersion, cancel))
	err = store.Append(ctx, repository.AnyVersion, cancel)
	assert.ErrorIs(t, err, ecommerce_errors.ErrConflict)
}

func TestEventStoreSerializesConcurrentAppends(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	store := repository.NewEventStore(pool)
	ctx := context.Background()

	events := testutil.NewEventLog(time.Now()).Events()
	txID := events[0].TransactionID
	require.NoError(t, store.Append(ctx, 0, events...))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := transaction.NewEvent(txID, transaction.UserCanceledData{}, time.Now())
			if err := store.Append(ctx, 1, e); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	got, err := store.ReadOrdered(ctx, txID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEventStoreDecodesLegacyActivation(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	store := repository.NewEventStore(pool)
	ctx := context.Background()

	txID := uuid.New()
	raw, err := json.Marshal(map[string]any{
		"rptId":                       "77777777777302016723749670035",
		"paymentToken":                "legacy-token",
		"idempotencyKey":              "77777777777_abcdefghij",
		"amount":                      1500,
		"email":                       "legacy@example.com",
		"paymentTokenValiditySeconds": 900,
	})
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO transaction_events
		(id, transaction_id, event_code, schema_version, data, created_at)
		VALUES ($1, $2, $3, 1, $4, now())`,
		uuid.New(), txID, string(transaction.EventActivated), raw)
	require.NoError(t, err)

	got, err := store.ReadOrdered(ctx, txID)
	require.NoError(t, err)
	tx, err := transaction.Fold(got)
	require.NoError(t, err)

	require.Len(t, tx.PaymentNotices, 1)
	assert.Equal(t, transaction.PaymentToken("legacy-token"), tx.PaymentNotices[0].PaymentToken)
	assert.Equal(t, int64(1500), tx.Amount())
	assert.Equal(t, transaction.ClientCheckout, tx.ClientID)
}

func TestViewRepositoryUpsertKeepsNewestVersion(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	views := repository.NewViewRepository(pool)
	ctx := context.Background()

	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	v := repository.TransactionView{
		TransactionID: id,
		Status:        string(transaction.StatusAuthorizationRequested),
		Email:         "user@example.com",
		ClientID:      string(transaction.ClientCheckout),
		RptIDs:        []string{"77777777777302016723749670035"},
		Amount:        1000,
		Version:       2,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, views.Upsert(ctx, v))

	stale := v
	stale.Status = string(transaction.StatusActivated)
	stale.Version = 1
	require.NoError(t, views.Upsert(ctx, stale))

	got, err := views.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(transaction.StatusAuthorizationRequested), got.Status)
	assert.Equal(t, 2, got.Version)

	_, err = views.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ecommerce_errors.ErrNotFound)
}

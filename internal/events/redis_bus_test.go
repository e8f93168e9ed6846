package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-transactions/internal/domain/transaction"
)

func TestRedisStatusBus(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bus := NewRedisStatusBus(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	changes, err := bus.Subscribe(ctx, id)
	require.NoError(t, err)

	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	tx := transaction.Transaction{ID: id, Status: transaction.StatusClosed, Version: 5}
	evs := []transaction.Event{
		{TransactionID: id, Code: transaction.EventClosureRequested, CreatedAt: at},
		{TransactionID: id, Code: transaction.EventClosed, CreatedAt: at.Add(time.Second)},
	}
	require.NoError(t, bus.Project(ctx, tx, evs))
	require.NoError(t, bus.Project(ctx, transaction.Transaction{ID: uuid.New(), Status: transaction.StatusActivated}, evs[:1]))

	select {
	case got := <-changes:
		assert.Equal(t, id.String(), got.TransactionID)
		assert.Equal(t, transaction.StatusClosed, got.Status)
		assert.Equal(t, 5, got.Version)
		assert.Equal(t, transaction.EventClosed, got.EventCode)
		assert.True(t, at.Add(time.Second).Equal(got.At))
	case <-ctx.Done():
		t.Fatal("no status change received")
	}
}

func TestRedisStatusBusSkipsEmptyBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, NewRedisStatusBus(client).Project(context.Background(), transaction.Transaction{ID: uuid.New()}, nil))
}

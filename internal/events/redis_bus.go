package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ecommerce-transactions/internal/domain/transaction"
)

// Channel pattern:
// - channel:transaction:{id} - one StatusChange per appended batch

func StatusChannel(transactionID uuid.UUID) string {
	return "channel:transaction:" + transactionID.String()
}

type StatusChange struct {
	TransactionID string                `json:"transactionId"`
	Status        transaction.Status    `json:"status"`
	Version       int                   `json:"version"`
	EventCode     transaction.EventCode `json:"eventCode"`
	At            time.Time             `json:"at"`
}

// RedisStatusBus fans status changes out over Redis Pub/Sub so that other
// instances can react without polling the event store.
type RedisStatusBus struct {
	client *redis.Client
}

func NewRedisStatusBus(client *redis.Client) *RedisStatusBus {
	return &RedisStatusBus{client: client}
}

// Project publishes the state reached after evs.
func (b *RedisStatusBus) Project(ctx context.Context, tx transaction.Transaction, evs []transaction.Event) error {
	if len(evs) == 0 {
		return nil
	}
	last := evs[len(evs)-1]
	data, err := json.Marshal(StatusChange{
		TransactionID: tx.ID.String(),
		Status:        tx.Status,
		Version:       tx.Version,
		EventCode:     last.Code,
		At:            last.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal status change: %w", err)
	}
	if err := b.client.Publish(ctx, StatusChannel(tx.ID), data).Err(); err != nil {
		return fmt.Errorf("publish status of %s: %w", tx.ID, err)
	}
	return nil
}

// Subscribe streams status changes of one transaction until ctx is done.
func (b *RedisStatusBus) Subscribe(ctx context.Context, transactionID uuid.UUID) (<-chan StatusChange, error) {
	pubsub := b.client.Subscribe(ctx, StatusChannel(transactionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", transactionID, err)
	}

	out := make(chan StatusChange)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var change StatusChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

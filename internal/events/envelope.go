package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ecommerce-transactions/internal/domain/transaction"
)

type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Queue         string          `json:"queue"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	RetryCount    int             `json:"retry_count"`
	Deliveries    int             `json:"deliveries"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(queue string, e transaction.Event, now time.Time, ttl time.Duration) (Envelope, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", e.Code, err)
	}
	return Envelope{
		ID:            uuid.New(),
		Queue:         queue,
		EventType:     string(e.Code),
		AggregateType: AggregateTypeTransaction,
		AggregateID:   e.TransactionID.String(),
		OccurredAt:    e.CreatedAt,
		ExpiresAt:     now.Add(ttl).UTC(),
		Payload:       payload,
	}, nil
}

func (e Envelope) TransactionID() (uuid.UUID, error) {
	id, err := uuid.Parse(e.AggregateID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("envelope %s: aggregate id: %w", e.ID, err)
	}
	return id, nil
}

// Expired reports a message past its time to live.
func (e Envelope) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Delivery is a claimed message. Receipt identifies it to Ack and Nack.
type Delivery struct {
	Envelope
	Receipt string
}

// NewRetryEnvelope builds a payload-less envelope that re-triggers work for a
// transaction. attempt is carried as RetryCount.
func NewRetryEnvelope(queue string, transactionID uuid.UUID, code transaction.EventCode, attempt int, now time.Time, ttl time.Duration) Envelope {
	return Envelope{
		ID:            uuid.New(),
		Queue:         queue,
		EventType:     string(code),
		AggregateType: AggregateTypeTransaction,
		AggregateID:   transactionID.String(),
		OccurredAt:    now.UTC(),
		ExpiresAt:     now.Add(ttl).UTC(),
		RetryCount:    attempt,
		Payload:       json.RawMessage(`{}`),
	}
}

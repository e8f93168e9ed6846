package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/pkg/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Record is the message value published for every committed event.
type Record struct {
	EventID       string          `json:"eventId"`
	TransactionID string          `json:"transactionId"`
	EventCode     string          `json:"eventCode"`
	Status        string          `json:"status"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	Data          json.RawMessage `json:"data"`
}

// KafkaPublisher streams events keyed by transaction id so a partition
// preserves per-transaction order.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	log := logger.GetGlobalLogger()
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Logger:       kafka.LoggerFunc(log.Infof),
		ErrorLogger:  kafka.LoggerFunc(log.Errorf),
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *KafkaPublisher) Project(ctx context.Context, tx transaction.Transaction, evs []transaction.Event) error {
	msgs := make([]kafka.Message, 0, len(evs))
	version := tx.Version - len(evs)
	for _, e := range evs {
		version++
		data, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", e.Code, err)
		}
		value, err := json.Marshal(Record{
			EventID:       e.ID.String(),
			TransactionID: e.TransactionID.String(),
			EventCode:     string(e.Code),
			Status:        string(tx.Status),
			Version:       version,
			CreatedAt:     e.CreatedAt,
			Data:          data,
		})
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", e.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.TransactionID.String()),
			Value:   value,
			Headers: []kafka.Header{{Key: "event_code", Value: []byte(e.Code)}},
			Time:    e.CreatedAt,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish projection: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

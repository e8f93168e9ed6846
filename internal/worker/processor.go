package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/commands"
	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/storage"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
	"ecommerce-transactions/pkg/logger"
)

type Queue interface {
	Receive(ctx context.Context, queue string, limit int, lease time.Duration) ([]events.Delivery, error)
	Ack(ctx context.Context, d events.Delivery) error
	Nack(ctx context.Context, d events.Delivery, delay time.Duration) error
	DeadLetter(ctx context.Context, d events.Delivery, reason string) error
}

// Service is the slice of services.TransactionService the worker drives.
type Service interface {
	Execute(ctx context.Context, cmd commands.Command) (commands.Result, error)
	Get(ctx context.Context, id uuid.UUID) (transaction.Transaction, error)
}

type ReceiptArchiver interface {
	Archive(ctx context.Context, r storage.Receipt) (string, error)
}

type Options struct {
	Interval      time.Duration
	BatchSize     int
	Lease         time.Duration
	MaxDeliveries int
	Backoff       time.Duration
}

func OptionsFromConfig(cfg config.QueueConfig) Options {
	return Options{
		Interval:      cfg.PollInterval,
		BatchSize:     cfg.BatchSize,
		Lease:         cfg.Lease,
		MaxDeliveries: cfg.MaxDeliveries,
		Backoff:       cfg.Backoff,
	}
}

// Processor polls every transaction queue and turns due messages into
// commands. A crashed worker's messages reappear once their lease ends.
type Processor struct {
	queue   Queue
	service Service
	archive ReceiptArchiver
	opts    Options
	queues  []string
	clock   func() time.Time
	log     *logger.Logger
}

// NewProcessor builds a processor. archive may be nil, in which case receipt
// messages are acknowledged without being stored.
func NewProcessor(queue Queue, service Service, archive ReceiptArchiver, opts Options, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.MaxDeliveries < 1 {
		opts.MaxDeliveries = 1
	}
	return &Processor{
		queue:   queue,
		service: service,
		archive: archive,
		opts:    opts,
		queues:  events.Queues(),
		clock:   time.Now,
		log:     log,
	}
}

func (p *Processor) WithClock(clock func() time.Time) *Processor {
	p.clock = clock
	return p
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce drains one batch from each queue and returns how many messages
// were handled.
func (p *Processor) ProcessOnce(ctx context.Context) int {
	handled := 0
	for _, queue := range p.queues {
		batch, err := p.queue.Receive(ctx, queue, p.opts.BatchSize, p.opts.Lease)
		if err != nil {
			p.log.Error(ctx, "queue receive failed", zap.String("queue", queue), zap.Error(err))
			continue
		}
		for _, d := range batch {
			p.process(ctx, d)
			handled++
		}
	}
	return handled
}

func (p *Processor) process(ctx context.Context, d events.Delivery) {
	ctx = logger.WithTransactionID(ctx, d.AggregateID)
	fields := []zap.Field{
		zap.String("queue", d.Queue),
		zap.String("message_id", d.ID.String()),
		zap.String("event_type", d.EventType),
		zap.Int("deliveries", d.Deliveries),
	}

	if d.Expired(p.clock()) {
		p.log.Warn(ctx, "message expired before processing", fields...)
		p.settle(ctx, d, p.queue.Ack(ctx, d))
		return
	}

	err := p.handle(ctx, d)
	switch {
	case err == nil:
		p.log.Debug(ctx, "message processed", fields...)
		p.settle(ctx, d, p.queue.Ack(ctx, d))
	case errors.Is(err, ecommerce_errors.ErrAlreadyProcessed):
		p.log.Info(ctx, "message skipped, transaction already processed", append(fields, zap.Error(err))...)
		p.settle(ctx, d, p.queue.Ack(ctx, d))
	case errors.Is(err, ecommerce_errors.ErrInvalidRequest),
		errors.Is(err, ecommerce_errors.ErrTransactionNotFound),
		errors.Is(err, ecommerce_errors.ErrUnrecoverable):
		p.log.Error(ctx, "message rejected", append(fields, zap.Error(err))...)
		p.settle(ctx, d, p.queue.DeadLetter(ctx, d, err.Error()))
	case d.Deliveries+1 >= p.opts.MaxDeliveries:
		p.log.Error(ctx, "message exhausted its deliveries", append(fields, zap.Error(err))...)
		p.settle(ctx, d, p.queue.DeadLetter(ctx, d, err.Error()))
	default:
		delay := p.opts.Backoff << d.Deliveries
		p.log.Warn(ctx, "message failed, redelivering", append(fields, zap.Duration("delay", delay), zap.Error(err))...)
		p.settle(ctx, d, p.queue.Nack(ctx, d, delay))
	}
}

func (p *Processor) settle(ctx context.Context, d events.Delivery, err error) {
	if err != nil {
		p.log.Error(ctx, "failed to settle message", zap.String("queue", d.Queue), zap.String("message_id", d.ID.String()), zap.Error(err))
	}
}

func (p *Processor) handle(ctx context.Context, d events.Delivery) error {
	id, err := d.TransactionID()
	if err != nil {
		return ecommerce_errors.Invalid("%v", err)
	}

	switch d.Queue {
	case events.QueueTransactionActivated:
		_, err = p.service.Execute(ctx, &commands.ExpireTransaction{TransactionID: id})
	case events.QueueClosureRetry:
		_, err = p.service.Execute(ctx, &commands.SendClosure{TransactionID: id, Attempt: d.RetryCount})
	case events.QueueRefund:
		_, err = p.service.Execute(ctx, &commands.ExecuteRefund{TransactionID: id})
	case events.QueueCancellation:
		_, err = p.service.Execute(ctx, &commands.ReleaseCancellation{TransactionID: id, Attempt: d.RetryCount})
	case events.QueueUserReceipt:
		err = p.archiveReceipt(ctx, id)
	default:
		err = ecommerce_errors.Invalid("no handler for queue %q", d.Queue)
	}
	return err
}

func (p *Processor) archiveReceipt(ctx context.Context, id uuid.UUID) error {
	if p.archive == nil {
		p.log.Debug(ctx, "receipt archive disabled")
		return nil
	}
	tx, err := p.service.Get(ctx, id)
	if err != nil {
		return err
	}
	receipt, err := storage.NewReceipt(tx)
	if err != nil {
		return ecommerce_errors.Invalid("%v", err)
	}
	key, err := p.archive.Archive(ctx, receipt)
	if err != nil {
		return fmt.Errorf("user receipt: %w", err)
	}
	p.log.Info(ctx, "user receipt archived", zap.String("key", key))
	return nil
}

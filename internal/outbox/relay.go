// Package outbox relays committed follow-up messages that their handler
// could not hand to the queue.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/repository"
	"ecommerce-transactions/pkg/logger"
)

type Sender interface {
	Send(ctx context.Context, env events.Envelope, visibility time.Duration) error
}

type Options struct {
	Interval    time.Duration
	BatchSize   int
	Lease       time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

func OptionsFromConfig(cfg config.QueueConfig) Options {
	return Options{
		Interval:    cfg.PollInterval,
		BatchSize:   cfg.BatchSize,
		Lease:       cfg.Lease,
		MaxAttempts: cfg.OutboxMaxAttempts,
		Backoff:     cfg.Backoff,
	}
}

type Relay struct {
	store  repository.OutboxStore
	sender Sender
	opts   Options
	clock  func() time.Time
	log    *logger.Logger
}

func NewRelay(store repository.OutboxStore, sender Sender, opts Options, log *logger.Logger) *Relay {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Relay{
		store:  store,
		sender: sender,
		opts:   opts,
		clock:  time.Now,
		log:    log,
	}
}

func (r *Relay) WithClock(clock func() time.Time) *Relay {
	r.clock = clock
	return r
}

func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RelayOnce(ctx)
		}
	}
}

// RelayOnce sends one batch of due outbox messages and returns how many
// reached the queue.
func (r *Relay) RelayOnce(ctx context.Context) int {
	now := r.clock()
	batch, err := r.store.ClaimPending(ctx, now, r.opts.Lease, r.opts.BatchSize)
	if err != nil {
		r.log.Error(ctx, "failed to claim outbox messages", zap.Error(err))
		return 0
	}

	sent := 0
	for _, m := range batch {
		mctx := logger.WithTransactionID(ctx, m.Envelope.AggregateID)
		fields := []zap.Field{
			zap.String("queue", m.Envelope.Queue),
			zap.String("message_id", m.ID().String()),
			zap.Int("attempts", m.Attempts),
		}

		if m.Envelope.Expired(now) {
			r.log.Warn(mctx, "outbox message expired before relay", fields...)
			r.mark(mctx, r.store.MarkFailed(mctx, m.ID(), "expired before relay"))
			continue
		}

		if err := r.sender.Send(mctx, m.Envelope, m.Visibility(now)); err != nil {
			if m.Attempts >= r.opts.MaxAttempts {
				r.log.Error(mctx, "outbox message exhausted its attempts", append(fields, zap.Error(err))...)
				r.mark(mctx, r.store.MarkFailed(mctx, m.ID(), err.Error()))
				continue
			}
			delay := r.opts.Backoff << max(m.Attempts-1, 0)
			r.log.Warn(mctx, "outbox relay failed, retrying", append(fields, zap.Duration("delay", delay), zap.Error(err))...)
			r.mark(mctx, r.store.MarkRetry(mctx, m.ID(), now.Add(delay), err.Error()))
			continue
		}

		r.mark(mctx, r.store.MarkSent(mctx, m.ID()))
		r.log.Info(mctx, "outbox message relayed", fields...)
		sent++
	}
	return sent
}

func (r *Relay) mark(ctx context.Context, err error) {
	if err != nil {
		r.log.Error(ctx, "failed to update outbox message", zap.Error(err))
	}
}

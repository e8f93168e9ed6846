package commands

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/repository"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
	"ecommerce-transactions/pkg/logger"
)

// load replays the log of id.
func (h *Handlers) load(ctx context.Context, id uuid.UUID) (transaction.Transaction, error) {
	evs, err := h.Store.ReadOrdered(ctx, id)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("read transaction %s: %w", id, err)
	}
	if len(evs) == 0 {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", id, ecommerce_errors.ErrTransactionNotFound)
	}
	tx, err := transaction.Fold(evs)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("replay transaction %s: %w", id, err)
	}
	return tx, nil
}

// current prefers an aggregate the caller already reduced in the same saga step.
func (h *Handlers) current(ctx context.Context, id uuid.UUID, reduced *transaction.Transaction) (transaction.Transaction, error) {
	if reduced != nil && reduced.ID == id {
		return *reduced, nil
	}
	return h.load(ctx, id)
}

func guard(tx transaction.Transaction, allowed ...transaction.Status) error {
	if slices.Contains(allowed, tx.Status) {
		return nil
	}
	return alreadyProcessed(tx)
}

func alreadyProcessed(tx transaction.Transaction) error {
	return &ecommerce_errors.AlreadyProcessedError{TransactionID: tx.ID.String(), Status: string(tx.Status)}
}

func ctxFor(ctx context.Context, id uuid.UUID) context.Context {
	return logger.WithTransactionID(ctx, id.String())
}

// commit appends data as new events on top of tx, then sends follow-up
// messages and projects the result.
func (h *Handlers) commit(ctx context.Context, tx transaction.Transaction, data ...transaction.EventData) (Result, error) {
	return h.commitWith(ctx, tx, nil, data...)
}

// commitWith is commit with extra outbox messages. Follow-ups are written to
// the outbox in the same append as the events, so a queue outage after the
// append leaves them for the relay instead of losing them.
func (h *Handlers) commitWith(ctx context.Context, tx transaction.Transaction, extra []repository.OutboxMessage, data ...transaction.EventData) (Result, error) {
	now := h.clock()
	evs := make([]transaction.Event, 0, len(data))
	for _, d := range data {
		evs = append(evs, transaction.NewEvent(tx.ID, d, now))
	}

	next, err := transaction.FoldFrom(tx, evs)
	if err != nil {
		return Result{}, err
	}
	outbox, err := h.followUps(next, evs, now)
	if err != nil {
		return Result{}, err
	}
	outbox = append(outbox, extra...)
	if err := h.Store.AppendWithOutbox(ctx, tx.Version, evs, outbox); err != nil {
		return Result{}, fmt.Errorf("append to transaction %s: %w", tx.ID, err)
	}

	for _, e := range evs {
		h.Log.Info(ctx, "transaction transition",
			zap.String("event_code", string(e.Code)),
			zap.String("from", string(tx.Status)),
			zap.String("to", string(next.Status)),
		)
	}

	h.flush(ctx, outbox)
	h.project(ctx, next, evs)
	return Result{AggregateID: tx.ID.String(), Transaction: next, Events: evs}, nil
}

// followUps builds the outbox messages evs call for.
func (h *Handlers) followUps(tx transaction.Transaction, evs []transaction.Event, now time.Time) ([]repository.OutboxMessage, error) {
	var msgs []repository.OutboxMessage
	for _, e := range evs {
		queue, ok := h.resolver.ResolveQueue(e)
		if !ok {
			continue
		}
		env, visibility, err := h.envelope(queue, tx, e, now)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, h.outboxMessage(env, visibility, now))
	}
	return msgs, nil
}

func (h *Handlers) outboxMessage(env events.Envelope, visibility time.Duration, now time.Time) repository.OutboxMessage {
	return repository.OutboxMessage{
		Envelope:   env,
		VisibleAt:  now.Add(visibility),
		RelayAfter: now.Add(h.settings.OutboxRelayDelay),
	}
}

// flush sends committed outbox messages. A failed send is only logged: the
// row stays pending and the relay retries it.
func (h *Handlers) flush(ctx context.Context, msgs []repository.OutboxMessage) {
	for _, m := range msgs {
		fields := []zap.Field{zap.String("queue", m.Envelope.Queue), zap.String("event_type", m.Envelope.EventType)}
		if err := h.Queue.Send(ctx, m.Envelope, m.Visibility(h.clock())); err != nil {
			h.Log.Warn(ctx, "follow-up left for outbox relay", append(fields, zap.Error(err))...)
			continue
		}
		if h.Outbox == nil {
			continue
		}
		if err := h.Outbox.MarkSent(ctx, m.ID()); err != nil {
			h.Log.Warn(ctx, "outbox message sent but not marked", append(fields, zap.Error(err))...)
		}
	}
}

// envelope wraps e for queue. Activation messages stay hidden until the
// payment tokens expire so the consumer can expire stale transactions.
func (h *Handlers) envelope(queue string, tx transaction.Transaction, e transaction.Event, now time.Time) (events.Envelope, time.Duration, error) {
	var visibility time.Duration
	ttl := h.settings.MessageTTL
	if e.Code == transaction.EventActivated {
		visibility = tx.ValidityEnd(h.settings.TokenValidity).Sub(now)
		ttl += visibility
	}
	env, err := events.NewEnvelope(queue, e, now, ttl)
	return env, visibility, err
}

// enqueue sends e to queue directly. Used to re-send a follow-up whose
// event was committed earlier.
func (h *Handlers) enqueue(ctx context.Context, queue string, tx transaction.Transaction, e transaction.Event) error {
	env, visibility, err := h.envelope(queue, tx, e, h.clock())
	if err != nil {
		return err
	}
	if err := h.Queue.Send(ctx, env, visibility); err != nil {
		h.Log.Error(ctx, "follow-up enqueue failed", zap.String("queue", queue), zap.String("event_code", string(e.Code)), zap.Error(err))
		return fmt.Errorf("enqueue %s on %s: %w", e.Code, queue, err)
	}
	return nil
}

func (h *Handlers) project(ctx context.Context, tx transaction.Transaction, evs []transaction.Event) {
	if h.Projector == nil {
		return
	}
	if err := h.Projector.Project(ctx, tx, evs); err != nil {
		h.Log.Warn(ctx, "projection failed", zap.Error(err))
	}
}

package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/pkg/logger"
)

type Sender interface {
	Send(ctx context.Context, env events.Envelope, visibility time.Duration) error
}

// Decision describes what Schedule did.
type Decision struct {
	Scheduled bool
	Attempt   int
	Delay     time.Duration
	Reason    string
}

type Scheduler struct {
	sender Sender
	policy Policy
	clock  func() time.Time
	log    *logger.Logger
}

func NewScheduler(sender Sender, policy Policy, log *logger.Logger) *Scheduler {
	return &Scheduler{
		sender: sender,
		policy: policy,
		clock:  time.Now,
		log:    log,
	}
}

func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Plan decides attempt for tx without sending it. The envelope is nil when
// the policy rules the attempt out; otherwise Decision.Delay is its visibility.
// A message that cannot be useful past the token validity carries that as its TTL.
func (s *Scheduler) Plan(ctx context.Context, queue string, tx transaction.Transaction, code transaction.EventCode, attempt int) (Decision, *events.Envelope) {
	now := s.clock()
	d := Decision{Attempt: attempt}

	if !s.policy.AttemptAllowed(attempt) {
		d.Reason = fmt.Sprintf("max attempts %d reached", s.policy.MaxAttempts)
		s.log.Warn(ctx, "retry not scheduled", zap.String("queue", queue), zap.Int("attempt", attempt), zap.String("reason", d.Reason))
		return d, nil
	}

	delay, ok := s.policy.VisibilityTimeout(tx.CreatedAt, tx.PaymentTokenValidity, now)
	if !ok {
		d.Reason = "payment token validity window exhausted"
		s.log.Warn(ctx, "retry not scheduled", zap.String("queue", queue), zap.Int("attempt", attempt), zap.String("reason", d.Reason))
		return d, nil
	}

	ttl := tx.ValidityEnd(s.policy.TokenValidity).Sub(now)
	env := events.NewRetryEnvelope(queue, tx.ID, code, attempt, now, ttl)
	d.Scheduled = true
	d.Delay = delay
	return d, &env
}

// Schedule plans attempt for tx and sends it on queue.
func (s *Scheduler) Schedule(ctx context.Context, queue string, tx transaction.Transaction, code transaction.EventCode, attempt int) (Decision, error) {
	d, env := s.Plan(ctx, queue, tx, code, attempt)
	if env == nil {
		return d, nil
	}
	if err := s.sender.Send(ctx, *env, d.Delay); err != nil {
		return Decision{Attempt: attempt}, fmt.Errorf("schedule %s attempt %d: %w", queue, attempt, err)
	}
	s.log.Info(ctx, "retry scheduled", zap.String("queue", queue), zap.Int("attempt", attempt), zap.Duration("visibility", d.Delay))
	return d, nil
}

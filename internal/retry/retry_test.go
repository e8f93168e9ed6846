package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/pkg/logger"
)

var start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testPolicy() Policy {
	return Policy{
		TokenValidity: 600 * time.Second,
		SafetyOffset:  60 * time.Second,
		RetryInterval: 120 * time.Second,
	}
}

func TestVisibilityTimeout(t *testing.T) {
	tests := []struct {
		name      string
		elapsed   time.Duration
		wantDelay time.Duration
		wantOK    bool
	}{
		{name: "early failure waits a full interval", elapsed: 10 * time.Second, wantDelay: 120 * time.Second, wantOK: true},
		{name: "near boundary shrinks to soft end", elapsed: 500 * time.Second, wantDelay: 40 * time.Second, wantOK: true},
		{name: "exactly at soft end", elapsed: 540 * time.Second, wantOK: false},
		{name: "past soft end", elapsed: 545 * time.Second, wantOK: false},
	}

	p := testPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, ok := p.VisibilityTimeout(start, 600*time.Second, start.Add(tt.elapsed))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDelay, delay)
		})
	}
}

func TestVisibilityTimeoutFallsBackToPolicyValidity(t *testing.T) {
	delay, ok := testPolicy().VisibilityTimeout(start, 0, start.Add(500*time.Second))
	require.True(t, ok)
	assert.Equal(t, 40*time.Second, delay)
}

func TestAttemptAllowed(t *testing.T) {
	p := testPolicy()
	assert.True(t, p.AttemptAllowed(100))

	p.MaxAttempts = 3
	assert.True(t, p.AttemptAllowed(3))
	assert.False(t, p.AttemptAllowed(4))
}

type sentMessage struct {
	env        events.Envelope
	visibility time.Duration
}

type recordingSender struct {
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, env events.Envelope, visibility time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{env: env, visibility: visibility})
	return nil
}

func testTransaction() transaction.Transaction {
	return transaction.Transaction{
		ID:                   uuid.New(),
		Status:               transaction.StatusClosureError,
		CreatedAt:            start,
		PaymentTokenValidity: 600 * time.Second,
	}
}

func TestSchedulerSchedulesWithinWindow(t *testing.T) {
	sender := &recordingSender{}
	now := start.Add(500 * time.Second)
	s := NewScheduler(sender, testPolicy(), logger.NewNop()).WithClock(func() time.Time { return now })
	tx := testTransaction()

	d, err := s.Schedule(context.Background(), events.QueueClosureRetry, tx, transaction.EventClosureError, 2)
	require.NoError(t, err)
	assert.True(t, d.Scheduled)
	assert.Equal(t, 40*time.Second, d.Delay)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, 40*time.Second, msg.visibility)
	assert.Equal(t, 2, msg.env.RetryCount)
	assert.Equal(t, tx.ID.String(), msg.env.AggregateID)
	assert.Equal(t, start.Add(600*time.Second), msg.env.ExpiresAt)
}

func TestSchedulerStopsAtSoftEnd(t *testing.T) {
	sender := &recordingSender{}
	now := start.Add(545 * time.Second)
	s := NewScheduler(sender, testPolicy(), logger.NewNop()).WithClock(func() time.Time { return now })

	d, err := s.Schedule(context.Background(), events.QueueClosureRetry, testTransaction(), transaction.EventClosureError, 1)
	require.NoError(t, err)
	assert.False(t, d.Scheduled)
	assert.Contains(t, d.Reason, "validity")
	assert.Empty(t, sender.sent)
}

func TestSchedulerHonoursMaxAttempts(t *testing.T) {
	sender := &recordingSender{}
	p := testPolicy()
	p.MaxAttempts = 2
	s := NewScheduler(sender, p, logger.NewNop()).WithClock(func() time.Time { return start })

	d, err := s.Schedule(context.Background(), events.QueueClosureRetry, testTransaction(), transaction.EventClosureError, 3)
	require.NoError(t, err)
	assert.False(t, d.Scheduled)
	assert.Empty(t, sender.sent)
}

func TestSchedulerPropagatesSendError(t *testing.T) {
	sender := &recordingSender{err: errors.New("redis down")}
	s := NewScheduler(sender, testPolicy(), logger.NewNop()).WithClock(func() time.Time { return start })

	_, err := s.Schedule(context.Background(), events.QueueClosureRetry, testTransaction(), transaction.EventClosureError, 1)
	assert.ErrorContains(t, err, "redis down")
}

func TestPlanDoesNotSend(t *testing.T) {
	sender := &recordingSender{}
	now := start.Add(500 * time.Second)
	s := NewScheduler(sender, testPolicy(), logger.NewNop()).WithClock(func() time.Time { return now })
	tx := testTransaction()

	d, env := s.Plan(context.Background(), events.QueueClosureRetry, tx, transaction.EventClosureError, 1)
	require.NotNil(t, env)
	assert.True(t, d.Scheduled)
	assert.Equal(t, 40*time.Second, d.Delay)
	assert.Equal(t, events.QueueClosureRetry, env.Queue)
	assert.Equal(t, 1, env.RetryCount)
	assert.Empty(t, sender.sent)

	now = start.Add(545 * time.Second)
	d, env = s.Plan(context.Background(), events.QueueClosureRetry, tx, transaction.EventClosureError, 2)
	assert.Nil(t, env)
	assert.False(t, d.Scheduled)
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"ecommerce-transactions/internal/events"
)

// Queue key patterns:
// - queue:{name} - sorted set of envelopes scored by visible-at (unix ms)
// - queue:{name}:dead - list of dead-lettered envelopes

// claimScript returns due members and pushes their score forward by the lease,
// hiding them from other consumers until acked or the lease runs out.
var claimScript = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
	redis.call('ZADD', KEYS[1], ARGV[3], member)
end
return due
`)

var requeueScript = goredis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[2])
return 1
`)

var deadLetterScript = goredis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('LPUSH', KEYS[2], ARGV[2])
return 1
`)

// ErrLeaseLost is returned when a delivery is no longer held by the caller.
var ErrLeaseLost = errors.New("delivery no longer in queue")

// DelayedQueue is an at-least-once queue with per-message visibility delay.
type DelayedQueue struct {
	client *goredis.Client
	clock  func() time.Time
}

func NewDelayedQueue(client *goredis.Client) *DelayedQueue {
	return &DelayedQueue{client: client, clock: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (q *DelayedQueue) WithClock(clock func() time.Time) *DelayedQueue {
	q.clock = clock
	return q
}

func queueKey(name string) string {
	return fmt.Sprintf("queue:%s", name)
}

func deadKey(name string) string {
	return fmt.Sprintf("queue:%s:dead", name)
}

// Send enqueues env so it becomes visible after visibility.
func (q *DelayedQueue) Send(ctx context.Context, env events.Envelope, visibility time.Duration) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("queue send: marshal: %w", err)
	}
	score := float64(q.clock().Add(visibility).UnixMilli())
	if err := q.client.ZAdd(ctx, queueKey(env.Queue), goredis.Z{Score: score, Member: data}).Err(); err != nil {
		return fmt.Errorf("queue send %s: %w", env.Queue, err)
	}
	return nil
}

// Receive claims up to limit visible messages for the duration of lease.
func (q *DelayedQueue) Receive(ctx context.Context, queue string, limit int, lease time.Duration) ([]events.Delivery, error) {
	now := q.clock()
	raw, err := claimScript.Run(ctx, q.client, []string{queueKey(queue)},
		now.UnixMilli(), limit, now.Add(lease).UnixMilli()).StringSlice()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue receive %s: %w", queue, err)
	}

	deliveries := make([]events.Delivery, 0, len(raw))
	for _, member := range raw {
		var env events.Envelope
		if err := json.Unmarshal([]byte(member), &env); err != nil {
			if dlErr := q.moveToDead(ctx, queue, member, "malformed envelope"); dlErr != nil {
				return deliveries, dlErr
			}
			continue
		}
		env.Queue = queue
		deliveries = append(deliveries, events.Delivery{Envelope: env, Receipt: member})
	}
	return deliveries, nil
}

func (q *DelayedQueue) Ack(ctx context.Context, d events.Delivery) error {
	if err := q.client.ZRem(ctx, queueKey(d.Queue), d.Receipt).Err(); err != nil {
		return fmt.Errorf("queue ack %s: %w", d.ID, err)
	}
	return nil
}

// Nack releases d with its delivery count bumped, visible again after delay.
func (q *DelayedQueue) Nack(ctx context.Context, d events.Delivery, delay time.Duration) error {
	env := d.Envelope
	env.Deliveries++
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("queue nack: marshal: %w", err)
	}
	score := q.clock().Add(delay).UnixMilli()
	moved, err := requeueScript.Run(ctx, q.client, []string{queueKey(d.Queue)}, d.Receipt, data, score).Int()
	if err != nil {
		return fmt.Errorf("queue nack %s: %w", d.ID, err)
	}
	if moved == 0 {
		return ErrLeaseLost
	}
	return nil
}

type deadLetter struct {
	Reason   string          `json:"reason"`
	DiedAt   time.Time       `json:"died_at"`
	Envelope json.RawMessage `json:"envelope"`
}

// DeadLetter removes d from the queue and parks it with reason.
func (q *DelayedQueue) DeadLetter(ctx context.Context, d events.Delivery, reason string) error {
	return q.moveToDead(ctx, d.Queue, d.Receipt, reason)
}

func (q *DelayedQueue) moveToDead(ctx context.Context, queue, member, reason string) error {
	entry := deadLetter{Reason: reason, DiedAt: q.clock().UTC(), Envelope: json.RawMessage(member)}
	if !json.Valid(entry.Envelope) {
		raw, _ := json.Marshal(member)
		entry.Envelope = raw
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("queue dead letter: marshal: %w", err)
	}
	moved, err := deadLetterScript.Run(ctx, q.client, []string{queueKey(queue), deadKey(queue)}, member, data).Int()
	if err != nil {
		return fmt.Errorf("queue dead letter %s: %w", queue, err)
	}
	if moved == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Depth counts pending and in-flight messages.
func (q *DelayedQueue) Depth(ctx context.Context, queue string) (int64, error) {
	return q.client.ZCard(ctx, queueKey(queue)).Result()
}

// DeadLetters lists parked messages, newest first.
func (q *DelayedQueue) DeadLetters(ctx context.Context, queue string) ([]string, error) {
	return q.client.LRange(ctx, deadKey(queue), 0, -1).Result()
}

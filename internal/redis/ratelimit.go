package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key pattern:
// - ratelimit:{ip}:activation - fixed window, per-client activation attempts

type RateLimitConfig struct {
	ActivationLimit  int
	ActivationWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		ActivationLimit:  30,
		ActivationWindow: time.Minute,
	}
}

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

var rateLimitScript = goredis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local ttl = redis.call('TTL', KEYS[1])
if ttl < 0 then
	ttl = window
end

if current < limit then
	redis.call('INCR', KEYS[1])
	if current == 0 then
		redis.call('EXPIRE', KEYS[1], window)
	end
	return {1, limit - current - 1, ttl}
end
return {0, 0, ttl}
`)

// AllowActivation checks if a client may start another transaction.
func (r *RateLimiter) AllowActivation(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:activation", clientIP)
	return r.checkLimit(ctx, key, r.config.ActivationLimit, r.config.ActivationWindow)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := rateLimitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetIn:   time.Duration(result[2]) * time.Second,
		Limit:     limit,
	}, nil
}

// Package retry decides when a failed closure or cancellation release is
// attempted again, bounded by the payment token validity window.
package retry

import (
	"time"

	"ecommerce-transactions/config"
)

type Policy struct {
	// TokenValidity is used when a transaction carries no validity of its own.
	TokenValidity time.Duration
	SafetyOffset  time.Duration
	RetryInterval time.Duration
	// MaxAttempts caps retries; zero leaves only the validity window as bound.
	MaxAttempts int
}

func NewPolicy(cfg *config.Config) Policy {
	return Policy{
		TokenValidity: cfg.PaymentTokenValidity,
		SafetyOffset:  cfg.Closure.SafetyOffset,
		RetryInterval: cfg.Closure.RetryInterval,
		MaxAttempts:   cfg.Closure.MaxAttempts,
	}
}

// VisibilityTimeout returns how long the next retry message stays hidden.
// It reports false once now has reached start+validity-safetyOffset.
func (p Policy) VisibilityTimeout(start time.Time, validity time.Duration, now time.Time) (time.Duration, bool) {
	if validity <= 0 {
		validity = p.TokenValidity
	}
	softEnd := start.Add(validity - p.SafetyOffset)
	if !now.Before(softEnd) {
		return 0, false
	}
	return min(p.RetryInterval, softEnd.Sub(now)), true
}

// AttemptAllowed reports whether attempt (1-based) is within MaxAttempts.
func (p Policy) AttemptAllowed(attempt int) bool {
	return p.MaxAttempts <= 0 || attempt <= p.MaxAttempts
}

// Package ratelimit controls the pace of outbound operations, primarily REST
// calls to the exchange. Kraken throttles and eventually bans clients that
// exceed its per-endpoint call budgets, so every HTTP client in this library
// waits on a RateLimiter before dispatching a request.
//
// The implementation wraps Uber's token-bucket limiter behind a small
// interface so tests can substitute their own pacing.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Rate expresses a limit as "Limit operations per Interval", e.g.
// {Limit: 15, Interval: time.Minute}.
type Rate struct {
	Limit    int
	Interval time.Duration
}

// RateLimiter paces operations according to a configured Rate.
type RateLimiter interface {
	// Wait blocks until the next operation is permitted or ctx is cancelled.
	Wait(ctx context.Context) error

	// SetLimit replaces the rate configuration at runtime.
	SetLimit(limit Rate) error
}

// uberLimiter implements RateLimiter on top of go.uber.org/ratelimit
type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a token-bucket limiter for the given rate.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	return &uberLimiter{
		limiter: ratelimit.New(rate.Limit, ratelimit.Per(rate.Interval)),
		rate:    rate,
	}
}

// Wait implements the RateLimiter interface
func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
		l.limiter.Take()
		return nil
	}
}

// SetLimit implements the RateLimiter interface
func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	l.limiter = ratelimit.New(rate.Limit, ratelimit.Per(rate.Interval))
	l.rate = rate
	return nil
}

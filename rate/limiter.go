// Package rate provides a Redis-backed fixed-window rate limiter implementing
// the authcore.RateLimiter contract. Counters are per operation+identifier and
// expire with the window, so the keyspace stays bounded.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when an identifier exhausted its attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("rate limiter backend unavailable")
)

// Config holds limiter tuning parameters.
type Config struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces per-identifier fixed-window admission control using Redis
// counters. Safe for concurrent use.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client. Zero-value config
// fields fall back to 10 attempts per 15 minutes under the "rl:" prefix.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl:"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// Check reports whether the operation+identifier pair is within its attempt
// budget. Returns [ErrRateLimited] when exhausted. Missing counters pass and
// do not reveal identifier existence.
func (l *Limiter) Check(ctx context.Context, op, identifier string) error {
	count, err := l.redis.Get(ctx, l.key(op, identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Record counts one failed attempt. Returns [ErrRateLimited] once the budget
// is exceeded.
func (l *Limiter) Record(ctx context.Context, op, identifier string) error {
	count, err := l.redis.Incr(ctx, l.key(op, identifier)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(op, identifier), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the attempt counter, typically after a successful login.
func (l *Limiter) Reset(ctx context.Context, op, identifier string) error {
	if err := l.redis.Del(ctx, l.key(op, identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(op, identifier string) string {
	return l.config.Prefix + op + ":" + identifier
}

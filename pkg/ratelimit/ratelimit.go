package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit describes a request budget over a rolling window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// PerHour builds a Limit of n requests per hour.
func PerHour(n int) Limit { return Limit{Requests: n, Window: time.Hour} }

// PerMinute builds a Limit of n requests per minute.
func PerMinute(n int) Limit { return Limit{Requests: n, Window: time.Minute} }

// Result reports the outcome of a limiter check. Reset is the instant the
// current window closes and the budget refills.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// Limiter enforces fixed-window limits keyed per caller. A window is a single
// Redis counter with a TTL; the first hit opens the window.
type Limiter struct {
	client *redis.Client
	prefix string
}

// NewLimiter builds a Limiter using the given key prefix.
func NewLimiter(client *redis.Client, prefix string) *Limiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Limiter{client: client, prefix: prefix}
}

// Allow consumes one unit of budget for key. It never fails open: a Redis
// error is returned to the caller instead of silently admitting the request.
func (l *Limiter) Allow(ctx context.Context, key string, limit Limit) (Result, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}

	n := int(count.Val())
	remainingTTL := ttl.Val()
	if remainingTTL < 0 {
		// First hit in a fresh window, or a counter left without expiry.
		remainingTTL = limit.Window
		if err := l.client.PExpire(ctx, redisKey, limit.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	res := Result{
		Limit:     limit.Requests,
		Remaining: limit.Requests - n,
		Reset:     time.Now().Add(remainingTTL),
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	res.Allowed = n <= limit.Requests
	return res, nil
}

package service

import (
	"context"
	"strings"

	"github.com/noah-isme/campus-idv-api/pkg/ratelimit"
)

// InstrumentedLimiter wraps a limiter and counts rejections per endpoint.
// Keys look like "submit:<student>"; only the prefix becomes a label.
type InstrumentedLimiter struct {
	next    rateLimiter
	metrics *MetricsService
}

// NewInstrumentedLimiter wraps next with rejection counting.
func NewInstrumentedLimiter(next rateLimiter, metrics *MetricsService) *InstrumentedLimiter {
	return &InstrumentedLimiter{next: next, metrics: metrics}
}

// Allow delegates to the wrapped limiter.
func (l *InstrumentedLimiter) Allow(ctx context.Context, key string, limit ratelimit.Limit) (ratelimit.Result, error) {
	res, err := l.next.Allow(ctx, key, limit)
	if err == nil && !res.Allowed {
		endpoint := key
		if i := strings.IndexByte(key, ':'); i > 0 {
			endpoint = key[:i]
		}
		l.metrics.RecordRateLimited(endpoint)
	}
	return res, err
}

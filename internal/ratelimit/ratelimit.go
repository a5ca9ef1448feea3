// Package ratelimit caps how many sandbox command invocations run
// concurrently in this process, the same two-tier shape the teacher's
// internal/limiter used for HTTP requests (a token-bucket rate limiter
// plus a hard concurrency ceiling) but applied to VM command dispatch
// instead of inbound HTTP connections.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/usesandbox/sandbox/internal/metrics"
)

type Limiter struct {
	tokens *rate.Limiter
	slots  chan struct{}
}

// New builds a limiter admitting at most rps sandbox calls per second
// (burst-capable up to 2*rps) and at most maxConcurrent running at once.
func New(rps float64, maxConcurrent int) *Limiter {
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		tokens: rate.NewLimiter(rate.Limit(rps), burst),
		slots:  make(chan struct{}, maxConcurrent),
	}
}

// Wait blocks until both a rate-limit token and a concurrency slot are
// available, or ctx is done first.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.tokens.Wait(ctx); err != nil {
		metrics.RateLimitHits.Inc()
		return fmt.Errorf("sandbox call rate limited: %w", err)
	}
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		metrics.RateLimitHits.Inc()
		return ctx.Err()
	}
}

// Done releases the concurrency slot acquired by a successful Wait.
func (l *Limiter) Done() {
	select {
	case <-l.slots:
	default:
	}
}

package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultBurst = 5

// Limiter throttles calls per collaborator. Keys are collaborator names
// such as "ner", "guideline" or "narrative"; each key gets its own token
// bucket, created on first use with the default rate.
type Limiter struct {
	buckets sync.Map // key -> *rate.Limiter
	rate    rate.Limit
	burst   int
}

// NewLimiter creates a limiter with a default rate for every collaborator.
// A non-positive rate disables limiting; a non-positive burst means 5.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = defaultBurst
	}
	return &Limiter{rate: limitOf(requestsPerSecond), burst: burst}
}

func limitOf(requestsPerSecond float64) rate.Limit {
	if requestsPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(requestsPerSecond)
}

// Wait blocks until key may make one call
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

// Allow reports whether key may call now, consuming a token if so
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if b, ok := l.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}
	b, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	return b.(*rate.Limiter)
}

// SetRate overrides the rate of one collaborator. A non-positive rate
// disables limiting for it; a non-positive burst keeps the default.
func (l *Limiter) SetRate(key string, requestsPerSecond float64, burst int) {
	if burst <= 0 {
		burst = l.burst
	}
	l.buckets.Store(key, rate.NewLimiter(limitOf(requestsPerSecond), burst))
}

// Configure applies per-collaborator rate overrides
func (l *Limiter) Configure(overrides map[string]float64) {
	for key, rps := range overrides {
		l.SetRate(key, rps, 0)
	}
}

// WaitWithDelay waits for a token, then sleeps for delay (retry backoff).
// Both steps honor ctx.
func (l *Limiter) WaitWithDelay(ctx context.Context, key string, delay time.Duration) error {
	if err := l.Wait(ctx, key); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a keyed token bucket shared by all callers of one vendor.
// A key's capacity and refill rate are fixed by its first use.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*rate.Limiter
	now func() time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*rate.Limiter), now: time.Now} }

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	return l.bucket(key, capacity, refillPerSec).AllowN(l.now(), 1)
}

// Wait blocks until a token for key is available or ctx is done.
// A non-positive refill rate disables limiting.
func (l *Limiter) Wait(ctx context.Context, key string, capacity, refillPerSec float64) error {
	if refillPerSec <= 0 {
		return nil
	}
	return l.bucket(key, capacity, refillPerSec).Wait(ctx)
}

func (l *Limiter) bucket(key string, capacity, refillPerSec float64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(refillPerSec), max(1, int(capacity)))
		l.m[key] = b
	}
	return b
}

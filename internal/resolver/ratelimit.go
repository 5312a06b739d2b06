package resolver

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every request to one resolver.
// A rate of zero or less disables limiting.
type RateLimiter struct {
	mu sync.Mutex

	perSecond  float64
	burst      float64
	tokens     float64
	lastUpdate time.Time

	totalWaited time.Duration
}

// NewRateLimiter creates a limiter allowing perSecond requests per second,
// with a burst of one second's worth of requests.
func NewRateLimiter(perSecond float64) *RateLimiter {
	r := &RateLimiter{lastUpdate: time.Now()}
	r.SetRate(perSecond)
	r.tokens = r.burst
	return r
}

// SetRate changes the rate. Safe to call while other goroutines wait.
func (r *RateLimiter) SetRate(perSecond float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	r.perSecond = perSecond
	r.burst = perSecond
	if r.burst < 1 {
		r.burst = 1
	}
	if r.tokens > r.burst || perSecond <= 0 {
		r.tokens = r.burst
	}
}

// Rate returns the configured requests per second.
func (r *RateLimiter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perSecond
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		if r.perSecond <= 0 {
			r.mu.Unlock()
			return ctx.Err()
		}
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		waitTime := time.Duration((1.0 - r.tokens) / r.perSecond * float64(time.Second))
		r.mu.Unlock()

		// Wait outside lock
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			r.mu.Lock()
			r.totalWaited += waitTime
			r.mu.Unlock()
		}
	}
}

// TotalWaited returns the cumulative time callers spent blocked.
func (r *RateLimiter) TotalWaited() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalWaited
}

// refill adds tokens for the elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	if r.perSecond <= 0 {
		return
	}
	r.tokens += elapsed * r.perSecond
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
}

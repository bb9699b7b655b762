// Package server throttles inbound frames per connection so a single chatty
// sender cannot starve the coordinator.
package server

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket. A connection may burst up to its capacity,
// then sustain one message per accrual step until it pauses long enough to
// refill.
type rateLimiter struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	step   time.Duration
	last   time.Time
}

// newRateLimiter builds a bucket holding burst tokens that refills one token
// every interval/burst. Non-positive arguments are clamped to a usable
// minimum instead of producing a limiter that blocks everything.
func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	step := interval / time.Duration(burst)
	if step <= 0 {
		step = time.Nanosecond
	}

	return &rateLimiter{
		tokens: float64(burst),
		burst:  float64(burst),
		step:   step,
		last:   time.Now(),
	}
}

// allow spends one token if available. Tokens accrue with elapsed wall time,
// capped at the burst capacity.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(rl.last); elapsed > 0 {
		rl.tokens += float64(elapsed) / float64(rl.step)
		if rl.tokens > rl.burst {
			rl.tokens = rl.burst
		}
	}
	rl.last = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

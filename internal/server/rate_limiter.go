package server

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket used to throttle inbound frames per
// connection, protecting the router from a single noisy client.
type rateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	capacity := float64(cfg.Burst)
	return &rateLimiter{
		tokens:    capacity,
		capacity:  capacity,
		rate:      capacity / cfg.RefillInterval.Seconds(),
		lastCheck: time.Now(),
	}
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastCheck).Seconds()
	rl.lastCheck = now

	if elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

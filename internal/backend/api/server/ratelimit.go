package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds the limiter map; crossing it resets the map
// wholesale, which briefly refills every bucket.
const maxTrackedKeys = 10000

// keyedLimiter keeps one token bucket per client key: the actor id for
// authenticated requests, the client IP otherwise.
type keyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	if rps <= 0 {
		rps = 10
	}

	if burst <= 0 {
		burst = int(rps)
	}

	return &keyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (kl *keyedLimiter) allow(key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if len(kl.limiters) >= maxTrackedKeys {
		kl.limiters = make(map[string]*rate.Limiter)
	}

	lim, ok := kl.limiters[key]
	if !ok {
		lim = rate.NewLimiter(kl.rps, kl.burst)
		kl.limiters[key] = lim
	}

	return lim.Allow()
}

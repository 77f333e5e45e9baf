package ingestion

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterRegistry hands out one token bucket per agent credential so a noisy
// agent cannot starve the rest of the fleet.
type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLimiterRegistry(limit rate.Limit, burst int) *limiterRegistry {
	return &limiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (r *limiterRegistry) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = l
	}
	return l
}

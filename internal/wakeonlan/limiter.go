package wakeonlan

import (
	"sync"

	"golang.org/x/time/rate"
)

// wakeLimiter throttles wake requests per device. A zero rate disables it.
type wakeLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newWakeLimiter(perSecond float64, burst int) *wakeLimiter {
	return &wakeLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a wake for deviceID may proceed now.
func (l *wakeLimiter) Allow(deviceID string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[deviceID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[deviceID] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// Forget drops the state kept for deviceID.
func (l *wakeLimiter) Forget(deviceID string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, deviceID)
}

package network

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimits hands out one token bucket per host.
// A non-positive rate disables limiting.
type HostLimits struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   float64
	burst    int
}

// NewHostLimits creates limits allowing perSec requests per second per host.
func NewHostLimits(perSec float64, burst int) *HostLimits {
	if burst < 1 {
		burst = 1
	}

	return &HostLimits{
		limiters: make(map[string]*rate.Limiter),
		perSec:   perSec,
		burst:    burst,
	}
}

var (
	defaultLimits     *HostLimits
	defaultLimitsOnce sync.Once
)

// Limits returns the process wide limits built from network.rate_limit.
func Limits() *HostLimits {
	defaultLimitsOnce.Do(func() {
		perSec := rateLimit()
		defaultLimits = NewHostLimits(perSec, int(perSec))
	})
	return defaultLimits
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostLimits) Wait(ctx context.Context, host string) error {
	limiter := h.limiterFor(host)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// Allow reports whether a request to host may be sent right now, consuming a token if so.
func (h *HostLimits) Allow(host string) bool {
	limiter := h.limiterFor(host)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (h *HostLimits) limiterFor(host string) *rate.Limiter {
	if h == nil || h.perSec <= 0 {
		return nil
	}

	host = strings.ToLower(host)

	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.perSec), h.burst)
		h.limiters[host] = l
	}
	return l
}

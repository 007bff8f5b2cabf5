// Package ratelimit provides an optional per-host token bucket for item fetches.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter gates outgoing requests per host.
type RateLimiter interface {
	// Wait blocks until a request for rawURL may start or ctx ends.
	Wait(ctx context.Context, rawURL string) error
}

// New returns a HostLimiter, or nil when rps <= 0 so callers can leave
// limiting switched off.
func New(rps float64, burst int) RateLimiter {
	if rps <= 0 {
		return nil
	}
	return NewHostLimiter(rps, burst)
}

// HostLimiter keeps one token bucket per host name. Ports and letter case
// do not split a host into separate buckets.
type HostLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewHostLimiter allows rps requests per second to each host with bursts
// of up to burst. A burst below 1 is raised to 1.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	return &HostLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
	}
}

// Wait implements RateLimiter. URLs without a host are not limited; the
// fetch itself will reject them.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	b := h.bucket(rawURL)
	if b == nil {
		return nil
	}
	return b.Wait(ctx)
}

func (h *HostLimiter) bucket(rawURL string) *rate.Limiter {
	host := hostOf(rawURL)
	if host == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buckets[host]
	if !ok {
		b = rate.NewLimiter(h.limit, h.burst)
		h.buckets[host] = b
	}
	return b
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

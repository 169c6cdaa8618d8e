package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConnLimiter throttles connection attempts per remote IP with a token bucket.
type ConnLimiter struct {
	mu       sync.Mutex
	perSec   rate.Limit
	burst    int
	idleTTL  time.Duration
	limiters map[string]*connEntry
}

type connEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewConnLimiter allows perSec attempts per IP with the given burst. A perSec
// of 0 disables limiting.
func NewConnLimiter(perSec float64, burst int) *ConnLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ConnLimiter{
		perSec:   rate.Limit(perSec),
		burst:    burst,
		idleTTL:  5 * time.Minute,
		limiters: make(map[string]*connEntry),
	}
}

func (c *ConnLimiter) Allow(ip string) bool {
	if c == nil || c.perSec <= 0 {
		return true
	}
	now := time.Now()
	c.mu.Lock()
	e := c.limiters[ip]
	if e == nil {
		e = &connEntry{lim: rate.NewLimiter(c.perSec, c.burst)}
		c.limiters[ip] = e
	}
	e.lastSeen = now
	c.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// Prune drops buckets not used within the idle TTL.
func (c *ConnLimiter) Prune() {
	if c == nil {
		return
	}
	cutoff := time.Now().Add(-c.idleTTL)
	c.mu.Lock()
	for ip, e := range c.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(c.limiters, ip)
		}
	}
	c.mu.Unlock()
}

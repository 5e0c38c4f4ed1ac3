package gateway

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Idle buckets are swept opportunistically from allow so the limiter needs
// no goroutine of its own.
const (
	limiterSweepInterval = 3 * time.Minute
	limiterMaxIdle       = 10 * time.Minute
)

// rateLimiter hands out one token bucket per client address.
type rateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &rateLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
}

// allow reports whether the client behind remoteAddr may proceed. Clients
// are keyed by host so one browser's parallel connections share a bucket.
func (l *rateLimiter) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > limiterSweepInterval {
		l.sweepLocked(now)
		l.lastSweep = now
	}

	c, ok := l.clients[host]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[host] = c
	}
	c.lastSeen = now

	return c.limiter.Allow()
}

// sweepLocked drops buckets idle longer than limiterMaxIdle. Caller holds mu.
func (l *rateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-limiterMaxIdle)
	for host, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, host)
		}
	}
}

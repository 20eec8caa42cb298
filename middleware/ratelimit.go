package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Stale limiters are only swept once there are more than this many.
	sweepThreshold = 500
	maxIdleAge     = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles each client address with its own token bucket.
// Requests over the limit get a 429.
type RateLimiter struct {
	next  http.Handler
	clock Clock
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*limiterEntry
}

var _ http.Handler = &RateLimiter{}

// NewRateLimiter allows perSecond requests per client, with bursts of up to
// burst.  A rate of zero or less turns limiting off.
func NewRateLimiter(next http.Handler, clock Clock, perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		next:    next,
		clock:   clock,
		limit:   limit,
		burst:   burst,
		clients: map[string]*limiterEntry{},
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	if len(rl.clients) > sweepThreshold {
		cutoff := now.Add(-maxIdleAge)
		for k, e := range rl.clients {
			if e.lastSeen.Before(cutoff) {
				delete(rl.clients, k)
			}
		}
	}

	e, ok := rl.clients[addr]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[addr] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !rl.allow(clientAddr(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	rl.next.ServeHTTP(w, r)
}

package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRateLimit = 10
	defaultRateBurst = 20

	// Idle limiters are evicted to keep the per-IP map bounded.
	limiterIdleTTL     = 5 * time.Minute
	limiterSweepPeriod = time.Minute
)

// ipLimiter tracks one client's token bucket and its last activity.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter applies a per-IP token bucket to wrapped handlers.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*ipLimiter
	rateLim rate.Limit
	burst   int
	log     *slog.Logger
}

// newRateLimiter builds a per-IP limiter and starts its eviction loop.
// The returned stop function terminates the loop.
func newRateLimiter(limit float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if burst <= 0 {
		burst = defaultRateBurst
	}
	rl := &rateLimiter{
		clients: make(map[string]*ipLimiter),
		rateLim: rate.Limit(limit),
		burst:   burst,
		log:     log,
	}
	done := make(chan struct{})
	go rl.evictLoop(done)
	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

// allow reports whether the client identified by ip may proceed.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &ipLimiter{limiter: rate.NewLimiter(rl.rateLim, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

// evictLoop sweeps idle client entries until done is closed.
func (rl *rateLimiter) evictLoop(done <-chan struct{}) {
	ticker := time.NewTicker(limiterSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, c := range rl.clients {
				if time.Since(c.lastSeen) > limiterIdleTTL {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// limit wraps next with the per-IP rate check, returning 429 when exceeded.
func (rl *rateLimiter) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !rl.allow(ip) {
			rl.log.Warn("rate limit exceeded", slog.String("ip", ip))
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

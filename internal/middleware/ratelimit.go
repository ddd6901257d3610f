package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// IdleTTL drops a client's limiter after this long without requests.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig allows a steady five runs a second with short bursts.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		IdleTTL:           10 * time.Minute,
	}
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates an empty limiter set.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow reports whether key may make a request now.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Prune forgets clients idle past IdleTTL and returns how many it dropped.
func (l *RateLimiter) Prune() int {
	cutoff := l.now().Add(-l.cfg.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			n++
		}
	}
	return n
}

// PruneEvery runs Prune on an interval until ctx is done.
func (l *RateLimiter) PruneEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
// Clients are keyed by the remote IP, so put chi's RealIP in front of it
// when running behind a proxy.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			retry := 1
			if l.cfg.RequestsPerSecond > 0 {
				retry = int(math.Ceil(1 / l.cfg.RequestsPerSecond))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests, slow down"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

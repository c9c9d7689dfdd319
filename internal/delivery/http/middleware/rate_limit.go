package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"storefront-cart/pkg/logger"
	"storefront-cart/pkg/utils"

	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles callers per client IP. A background loop evicts idle clients
// until Shutdown.
type RateLimiter struct {
	clients       map[string]*client
	mu            sync.Mutex
	limit         rate.Limit
	burst         int
	cleanupPeriod time.Duration
	clientTTL     time.Duration
	now           func() time.Time
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRateLimiter creates a RateLimiter allowing limit requests per second with the given
// burst, evicting clients idle for clientTTL every cleanupPeriod.
func NewRateLimiter(ctx context.Context, limit rate.Limit, burst int, cleanupPeriod, clientTTL time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients:       make(map[string]*client),
		limit:         limit,
		burst:         burst,
		cleanupPeriod: cleanupPeriod,
		clientTTL:     clientTTL,
		now:           time.Now,
	}
	rl.ctx, rl.cancel = context.WithCancel(ctx)
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)
			if !rl.Allow(ip) {
				logger.WithContext(r.Context()).Debug().Str("ip", ip).Msg("Rate limited")
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				utils.WriteError(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allow reports whether ip may make a request now, consuming a token if so.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.getVisitor(ip).AllowN(rl.now(), 1)
}

func (rl *RateLimiter) retryAfter() int {
	if rl.limit <= 0 || rl.limit == rate.Inf {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(rl.limit))))
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.clients[ip]
	if !exists {
		v = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = v
	}
	v.lastSeen = rl.now()
	return v.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.ctx.Done():
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, v := range rl.clients {
		if now.Sub(v.lastSeen) > rl.clientTTL {
			delete(rl.clients, ip)
		}
	}
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Shutdown stops the cleanup goroutine
func (rl *RateLimiter) Shutdown() {
	rl.cancel()
}

package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/emperorhan/terra-sync/internal/cache"
	"github.com/emperorhan/terra-sync/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	// staleLimiterTTL is how long an idle client keeps its bucket.
	staleLimiterTTL = 10 * time.Minute

	maxTrackedClients = 16_384
)

// RateLimiter applies a per-client-IP token bucket to mutating requests.
// Buckets live in a sharded LRU, so idle clients age out without a sweeper.
type RateLimiter struct {
	limiters *cache.ShardedLRU[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
	logger   *slog.Logger
}

func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache.NewShardedLRU[string, *rate.Limiter](maxTrackedClients, staleLimiterTTL, func(k string) string { return k }),
		rps:      rate.Limit(rps),
		burst:    burst,
		logger:   logger,
	}
}

// Wrap limits POST, PUT and DELETE; reads pass through.
func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := extractClientIP(r)
		if !rl.limiter(clientIP).Allow() {
			metrics.APIRateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			rl.logger.Warn("API rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", clientIP,
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(clientIP string) *rate.Limiter {
	if l, ok := rl.limiters.Get(clientIP); ok {
		return l
	}
	rl.limiters.PutIfAbsent(clientIP, rate.NewLimiter(rl.rps, rl.burst))
	if l, ok := rl.limiters.Get(clientIP); ok {
		return l
	}
	// evicted between the two calls; a fresh bucket is the safe answer
	return rate.NewLimiter(rl.rps, rl.burst)
}

// TrackedClients returns how many client buckets are held.
func (rl *RateLimiter) TrackedClients() int {
	return rl.limiters.Len()
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// extractClientIP checks X-Forwarded-For (first entry), then X-Real-IP,
// then the connection's remote address.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

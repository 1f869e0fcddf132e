package api

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// defaultBurst is used when a config sets a rate but no burst.
const defaultBurst = 10

// visitor is the limiter of one client IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-IP rate limiting.
type RateLimiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	limit      rate.Limit
	config     RateLimiterConfig
	cleanupTTL time.Duration
}

// NewRateLimiter creates a rate limiter. Call Run to evict idle clients.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = defaultBurst
	}
	return &RateLimiter{
		visitors:   make(map[string]*visitor),
		limit:      rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		config:     config,
		cleanupTTL: 5 * time.Minute,
	}
}

// limiterFor returns the limiter of ip, creating it on first use.
func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.config.BurstSize)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Run evicts idle clients every minute until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

// evict removes clients idle for longer than the TTL.
func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.cleanupTTL {
			delete(rl.visitors, ip)
		}
	}
}

// Allow checks if a request from the given IP should be allowed.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.limiterFor(ip).Allow()
}

// Remaining returns the number of requests ip may still make right away.
func (rl *RateLimiter) Remaining(ip string) int {
	return int(rl.limiterFor(ip).Tokens())
}

// Reset returns when the bucket of ip will be full again.
func (rl *RateLimiter) Reset(ip string) time.Time {
	return rl.until(rl.limiterFor(ip), float64(rl.config.BurstSize))
}

// until returns when lim will hold want tokens.
func (rl *RateLimiter) until(lim *rate.Limiter, want float64) time.Time {
	now := time.Now()
	missing := want - lim.TokensAt(now)
	if missing <= 0 || rl.limit <= 0 {
		return now
	}
	return now.Add(time.Duration(missing / float64(rl.limit) * float64(time.Second)))
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.limiterFor(getClientIP(r))

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", rl.until(lim, float64(rl.config.BurstSize)).Unix()))

		if !lim.Allow() {
			retryAfter := int(math.Ceil(time.Until(rl.until(lim, 1)).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int(lim.Tokens())))

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP address from the request. The
// leftmost X-Forwarded-For entry wins, then X-Real-IP, then RemoteAddr;
// header values that are not IP addresses are ignored.
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if isValidIP(clientIP) {
			return clientIP
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(realIP) {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if isValidIP(ip) {
		return ip
	}
	return "unknown"
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address.
func isValidIP(ipStr string) bool {
	return net.ParseIP(ipStr) != nil
}

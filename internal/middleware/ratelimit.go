package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harliandi/go-pngquant/pkg/metrics"
)

// RateLimiter implements token bucket rate limiting per IP address
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*bucket
	rate   int           // tokens per second
	burst  int           // max burst size
	ttl    time.Duration // idle time after which a bucket is dropped
	done   chan struct{}
	once   sync.Once
}

type bucket struct {
	tokens  float64
	lastRef time.Time
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop.
// rate: requests per second allowed
// burst: maximum burst size (tokens can accumulate to this)
func NewRateLimiter(rate, burst int) *RateLimiter {
	rl := &RateLimiter{
		limits: make(map[string]*bucket),
		rate:   rate,
		burst:  max(burst, 1),
		ttl:    5 * time.Minute,
		done:   make(chan struct{}),
	}
	go rl.cleanup(time.Minute)
	return rl
}

// Allow checks if a request from the given IP should be allowed
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.allowAt(ip, time.Now())
}

func (rl *RateLimiter) allowAt(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.limits[ip]
	if !exists {
		rl.limits[ip] = &bucket{tokens: float64(rl.burst) - 1, lastRef: now}
		return true
	}

	b.tokens += now.Sub(b.lastRef).Seconds() * float64(rl.rate)
	b.lastRef = now
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

// cleanup removes stale entries to prevent memory leaks
func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.prune(now)
		}
	}
}

func (rl *RateLimiter) prune(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for ip, b := range rl.limits {
		if now.Sub(b.lastRef) > rl.ttl {
			delete(rl.limits, ip)
			removed++
		}
	}
	return removed
}

// Handler rejects requests over the limit with 429
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			metrics.RecordRateLimitExceeded(ipPrefix(ip))
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP from the request, preferring proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ipPrefix keeps the network part of an IP for privacy-preserving metrics
func ipPrefix(ip string) string {
	addr := net.ParseIP(ip)
	switch {
	case addr == nil:
		return "unknown"
	case addr.To4() != nil:
		return addr.Mask(net.CIDRMask(8, 32)).String()
	default:
		return addr.Mask(net.CIDRMask(32, 128)).String()
	}
}

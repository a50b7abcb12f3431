package middleware

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/harliandi/go-pngquant/pkg/metrics"
)

// ConcurrencyLimiter limits the number of concurrent requests
type ConcurrencyLimiter struct {
	semaphore chan struct{}
	active    atomic.Int64
}

// NewConcurrencyLimiter creates a new concurrency limiter
func NewConcurrencyLimiter(limit int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{semaphore: make(chan struct{}, limit)}
}

// Acquire tries to acquire a slot. Returns false if limit is reached
func (cl *ConcurrencyLimiter) Acquire() bool {
	select {
	case cl.semaphore <- struct{}{}:
		metrics.UpdateConcurrency(int(cl.active.Add(1)))
		return true
	default:
		return false
	}
}

// Release releases a slot
func (cl *ConcurrencyLimiter) Release() {
	<-cl.semaphore
	metrics.UpdateConcurrency(int(cl.active.Add(-1)))
}

// Active returns the number of requests holding a slot
func (cl *ConcurrencyLimiter) Active() int {
	return int(cl.active.Load())
}

// Handler rejects requests with 503 while every slot is taken
func (cl *ConcurrencyLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cl.Acquire() {
			slog.Warn("concurrency limit reached", "max", cap(cl.semaphore), "path", r.URL.Path)
			metrics.RecordConcurrencyLimitExceeded()
			writeJSONError(w, http.StatusServiceUnavailable, "Service busy, please try again")
			return
		}
		defer cl.Release()
		next.ServeHTTP(w, r)
	})
}

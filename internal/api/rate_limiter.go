package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	limit     rate.Limit
	burstSize int
}

// NewRateLimiter creates a new rate limiter. rps <= 0 disables limiting.
func NewRateLimiter(rps, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		limit:     limit,
		burstSize: burst,
	}
}

// getLimiter returns the rate limiter for a client
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.limit, rl.burstSize)
	rl.limiters[key] = limiter

	return limiter
}

// clientKey identifies the caller by X-Client-ID, falling back to the remote IP
func clientKey(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.getLimiter(clientKey(r))

			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Rate limit exceeded. Please try again later.", map[string]interface{}{
					"limit": float64(limiter.Limit()),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"narrative-safety/internal/config"
)

// RateLimiter applies a token bucket per client IP
type RateLimiter struct {
	enabled  bool
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. Call Close to stop the
// background cleanup.
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	requests := max(cfg.Requests, 1)
	duration := cfg.Duration
	if duration <= 0 {
		duration = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl := &RateLimiter{
		enabled:  cfg.Enabled,
		limit:    rate.Every(duration / time.Duration(requests)),
		burst:    requests,
		visitors: make(map[string]*visitor),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go rl.cleanupVisitors(ctx)

	return rl
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.cancel()
	<-rl.done
}

// Limit rate limits requests based on IP address
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.allow(getIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

func (rl *RateLimiter) cleanupVisitors(ctx context.Context) {
	defer close(rl.done)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > 3*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// getIP gets the client IP address from the request
func getIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

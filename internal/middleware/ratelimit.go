package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/attributionops/attribution-engine/internal/config"
	"github.com/attributionops/attribution-engine/internal/metrics"
)

// RateLimitMiddleware limits requests per client IP. With a Redis client it
// uses a fixed window shared across instances; without one it falls back to
// local token buckets. Redis failures fail open.
type RateLimitMiddleware struct {
	cfg     config.RateLimitConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	client  *redis.Client

	mu         sync.RWMutex
	ipLimiters map[string]*rate.Limiter
}

// NewRateLimitMiddleware creates a new rate limiting middleware. client may
// be nil.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, client *redis.Client, m *metrics.Metrics, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		client:     client,
		ipLimiters: make(map[string]*rate.Limiter),
	}
}

// Handler wraps an http.Handler with per-IP rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if !rl.allow(r, ip) {
			rl.logger.Warn("rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitHit(r.URL.Path, ip)
			}
			rl.tooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) allow(r *http.Request, ip string) bool {
	if rl.client != nil {
		return rl.allowRedis(r, ip)
	}
	return rl.ipLimiter(ip).Allow()
}

// allowRedis implements a fixed window counter in Redis. The window key
// embeds the window start so counters roll over naturally.
func (rl *RateLimitMiddleware) allowRedis(r *http.Request, ip string) bool {
	ctx := r.Context()
	window := rl.cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	windowStart := time.Now().UTC().Truncate(window).Unix()
	key := fmt.Sprintf("ratelimit:%s:%d", ip, windowStart)

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		// Fail open so a Redis outage never blocks reporting.
		return true
	}
	if count == 1 {
		rl.client.Expire(ctx, key, window+time.Second)
	}
	return count <= int64(rl.cfg.MaxRequests)
}

// ipLimiter returns or creates the local token bucket for an IP.
func (rl *RateLimitMiddleware) ipLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.ipLimiters[ip]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists = rl.ipLimiters[ip]; exists {
		return limiter
	}

	window := rl.cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	rps := float64(rl.cfg.MaxRequests) / window.Seconds()
	limiter = rate.NewLimiter(rate.Limit(rps), rl.cfg.MaxRequests)
	rl.ipLimiters[ip] = limiter

	return limiter
}

// CleanupIPLimiters drops the local limiter map to bound memory. Called
// hourly from a background goroutine in main.
func (rl *RateLimitMiddleware) CleanupIPLimiters() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.ipLimiters = make(map[string]*rate.Limiter)
}

// tooManyRequests sends a 429 response.
func (rl *RateLimitMiddleware) tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded"}`))
}

package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	// EntryTTL is how long an idle client's bucket is remembered.
	EntryTTL   time.Duration
	MaxClients int
}

type rateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries *expirable.LRU[string, *rate.Limiter]
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	ttl := cfg.EntryTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	size := cfg.MaxClients
	if size <= 0 {
		size = 10000
	}
	return &rateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst:   cfg.Burst,
		entries: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
	}
}

func (r *rateLimiter) allow(key string) bool {
	if r == nil || key == "" {
		return true
	}
	r.mu.Lock()
	limiter, ok := r.entries.Get(key)
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.entries.Add(key, limiter)
	}
	r.mu.Unlock()
	return limiter.Allow()
}

// RateLimitMiddleware throttles requests per client IP. A non-positive rate
// or burst disables it.
func RateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 || cfg.Burst <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newRateLimiter(cfg)
	retryAfter := strconv.Itoa(int((time.Minute / time.Duration(cfg.RequestsPerMinute)).Seconds()) + 1)
	return func(c *gin.Context) {
		if !limiter.allow("ip:" + c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			respondError(c, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
		c.Next()
	}
}

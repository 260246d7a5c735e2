package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimit  = 5
	defaultRateWindow = 15 * time.Minute
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// localLimiters hands out one token bucket per key when Redis is not configured.
// Idle buckets expire after a window.
type localLimiters struct {
	mu      sync.Mutex
	buckets *cache.Cache
	limit   int
	window  time.Duration
}

func newLocalLimiters(limit int, window time.Duration) *localLimiters {
	return &localLimiters{
		buckets: cache.New(window, window),
		limit:   limit,
		window:  window,
	}
}

func (l *localLimiters) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var limiter *rate.Limiter
	if v, ok := l.buckets.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
	}
	l.buckets.SetDefault(key, limiter)
	return limiter.Allow()
}

func rateLimitKey(endpoint, clientIP string) string {
	return fmt.Sprintf("ratelimit:%s:%s", endpoint, clientIP)
}

// RateLimiter throttles requests per client IP and route. Counters live in Redis
// when it is available and in process memory otherwise.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultRateLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultRateWindow
	}
	local := newLocalLimiters(cfg.Limit, cfg.Window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		key := rateLimitKey(endpoint, clientIP)

		allowed, err := checkRateLimit(c.Request.Context(), key, cfg.Limit, cfg.Window)
		if errors.Is(err, errNoRedis) {
			allowed, err = local.allow(key), nil
		}
		if err != nil {
			// a broken Redis must not lock everybody out
			util.LogSecurityEvent(util.SecurityEvent{
				EventType: util.EventSuspiciousActivity,
				IP:        clientIP,
				Message:   fmt.Sprintf("Rate limit check failed: %v", err),
			})
			allowed = local.allow(key)
		}

		if !allowed {
			util.LogRateLimitExceeded(util.RateLimitParams{IP: clientIP, Endpoint: endpoint})
			util.CallTooManyRequests(c, util.APIErrorParams{
				Msg: "Too many requests. Please try again later.",
				Err: fmt.Errorf("rate limit exceeded"),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

var errNoRedis = errors.New("redis not available")

// checkRateLimit increments the Redis counter for key and reports whether it is
// still within limit.
func checkRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return false, errNoRedis
	}

	pipe := rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}

// ResetRateLimit clears the Redis counter of a client on an endpoint.
func ResetRateLimit(clientIP, endpoint string) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return errNoRedis
	}
	return rdb.Del(context.Background(), rateLimitKey(endpoint, clientIP)).Err()
}

package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/iamasit07/audio-translator/pkg/useragent"
	"github.com/jonboulle/clockwork"
)

// DefaultMaxKeys bounds how many client buckets are tracked at once.
const DefaultMaxKeys = 10000

// RateLimiter is a fixed-window token bucket per key (client IP). Idle
// buckets expire out of the LRU after two windows.
type RateLimiter struct {
	buckets *expirable.LRU[string, *bucket]
	rate    int
	window  time.Duration
	clock   clockwork.Clock
	mu      sync.Mutex
}

type bucket struct {
	lastRefill time.Time
	tokens     int
	mu         sync.Mutex
}

func NewRateLimiter(rate int, window time.Duration, maxKeys int, clock clockwork.Clock) *RateLimiter {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		buckets: expirable.NewLRU[string, *bucket](maxKeys, nil, window*2),
		rate:    rate,
		window:  window,
		clock:   clock,
	}
}

func (rl *RateLimiter) bucketFor(key string) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets.Get(key)
	if !ok {
		b = &bucket{tokens: rl.rate, lastRefill: rl.clock.Now()}
	}
	// re-adding refreshes the entry's expiry
	rl.buckets.Add(key, b)
	return b
}

// Allow takes a token for key. It also returns what is left and when the
// window resets, for the RateLimit-* headers.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, reset time.Duration) {
	b := rl.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.clock.Now()
	if now.Sub(b.lastRefill) >= rl.window {
		b.tokens = rl.rate
		b.lastRefill = now
	}
	reset = rl.window - now.Sub(b.lastRefill)

	if b.tokens > 0 {
		b.tokens--
		return true, b.tokens, reset
	}
	return false, 0, reset
}

// RateLimitMiddleware rejects with 429 and the given message once a client IP
// exceeds the limiter's budget.
func RateLimitMiddleware(limiter *RateLimiter, message string, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "ratelimit")

	return func(c *gin.Context) {
		key := useragent.ExtractIPAddress(c.Request)
		allowed, remaining, reset := limiter.Allow(key)

		c.Header("RateLimit-Limit", strconv.Itoa(limiter.rate))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(int(math.Ceil(reset.Seconds()))))

		if !allowed {
			logger.Warn("rate limit exceeded", "ip", key, "method", c.Request.Method, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": message})
			return
		}
		c.Next()
	}
}

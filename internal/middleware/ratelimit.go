package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Limit() int
	Window() time.Duration
}

// RateLimiter provides rate limiting functionality using Redis.
type RateLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
}

// NewRateLimiter creates a new RateLimiter.
func NewRateLimiter(client *redis.Client, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:   client,
		requests: requests,
		window:   window,
	}
}

var rateLimitScript = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if current == 1 then
		redis.call("EXPIRE", KEYS[1], ARGV[1])
	end
	return current
`)

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	result, err := rateLimitScript.Run(ctx, rl.client, []string{redisKey}, int(rl.window.Seconds())).Int()
	if err != nil {
		return false, 0, err
	}

	remaining := rl.requests - result
	if remaining < 0 {
		remaining = 0
	}

	return result <= rl.requests, remaining, nil
}

func (rl *RateLimiter) Limit() int            { return rl.requests }
func (rl *RateLimiter) Window() time.Duration { return rl.window }

// LocalRateLimiter is a per-process token bucket per key, used when Redis is
// not configured.
type LocalRateLimiter struct {
	requests int
	window   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalRateLimiter allows requests per window for each key, with bursts
// up to requests.
func NewLocalRateLimiter(requests int, window time.Duration) *LocalRateLimiter {
	if requests < 1 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LocalRateLimiter{
		requests: requests,
		window:   window,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (rl *LocalRateLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	rl.mu.Lock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.requests)), rl.requests)
		rl.limiters[key] = l
	}
	rl.mu.Unlock()

	allowed := l.Allow()
	remaining := int(l.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, nil
}

func (rl *LocalRateLimiter) Limit() int            { return rl.requests }
func (rl *LocalRateLimiter) Window() time.Duration { return rl.window }

// RateLimit returns middleware that rate limits requests by client IP.
func RateLimit(limiter Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			allowed, remaining, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// If Redis is down, fail closed and return 503
				slog.Error("rate limiter unavailable", "key", key, "error", err)
				jsonError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
				return
			}

			// Set rate limit headers
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(limiter.Window()).Unix()))

			if !allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(limiter.Window().Seconds())))
				jsonError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

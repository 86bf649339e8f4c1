package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"seat-reservation/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// RedisTokenBucket is a token bucket shared by every instance through a
// single Lua script, so check-and-take is atomic per key.
type RedisTokenBucket struct {
	rdb redis.Scripter
	cfg utils.RateLimitConfig
	now func() time.Time
}

func NewRedisTokenBucket(rdb redis.Scripter, cfg utils.RateLimitConfig) *RedisTokenBucket {
	return &RedisTokenBucket{rdb: rdb, cfg: cfg, now: time.Now}
}

func (b *RedisTokenBucket) Allow(ctx context.Context, key string) (Decision, error) {
	args := []any{
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL / time.Second),
	}

	vals, err := tokenBucketScript.Run(ctx, b.rdb, []string{key}, args...).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("unexpected token bucket result: %v", vals)
	}

	return Decision{
		Allowed:    vals[0] == 1,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// RateLimit throttles per user and route. Limiter errors fail open.
func RateLimit(limiter Limiter, cfg utils.RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled || limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateKey(cfg.Prefix, r)

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter unavailable", zap.Error(err), zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				logger.Info("Rate limit exceeded", zap.String("key", key), zap.Int("retry_after", secs))
				utils.ResponseTooManyRequests(w, "Rate limit exceeded, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(prefix string, r *http.Request) string {
	who := "anon"
	if actor, ok := utils.GetActorFromContext(r.Context()); ok {
		who = actor.UserID.String()
	} else if ip := clientIP(r); ip != "" {
		who = "ip:" + ip
	}

	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}

	return strings.Join([]string{prefix, who, r.Method + " " + route}, ":")
}

// clientIP reads the peer address. chi's RealIP has already replaced it with
// the forwarded client address, without a port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

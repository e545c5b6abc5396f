package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
)

const (
	keyPrefix = "market:"

	// autoBlockAfter violations within violationWindow block an IP for autoBlockFor.
	autoBlockAfter  = 10
	violationWindow = time.Hour
	autoBlockFor    = 24 * time.Hour
)

// RateLimit bounds requests per client within a sliding window. Limits with
// the same Scope share a counter.
type RateLimit struct {
	Requests int
	Window   time.Duration
	Scope    string
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist        []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled bool     // Enable auto-blocking after repeated violations
}

// slidingWindow trims entries older than the window, admits the request when
// under the limit and returns {admitted, count before this request}.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, count}
end
return {0, count}
`)

// RateLimiter limits requests per client IP using Redis sorted sets.
type RateLimiter struct {
	client           *redis.Client
	limits           map[string]RateLimit
	blocker          *IPBlocker
	logger           zerolog.Logger
	whitelist        []*net.IPNet
	whitelistIPs     map[string]bool
	autoBlockEnabled bool
}

// NewRateLimiter creates a rate limiter with the gateway's route limits.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		client:           client,
		blocker:          NewIPBlocker(client),
		logger:           logger,
		whitelistIPs:     make(map[string]bool),
		autoBlockEnabled: cfg.AutoBlockEnabled,
		limits: map[string]RateLimit{
			"POST /upload":       {30, time.Hour, "upload"},
			"PUT /upload":        {30, time.Hour, "upload"},
			"GET /uploads":       {60, time.Minute, "uploads"},
			"GET /agents":        {120, time.Minute, "agents"},
			"GET /agents/search": {30, time.Minute, "search"},
			"GET /stats":         {60, time.Minute, "stats"},
		},
	}

	for _, entry := range cfg.Whitelist {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in whitelist")
				continue
			}
			rl.whitelist = append(rl.whitelist, ipNet)
		} else {
			rl.whitelistIPs[entry] = true
		}
	}

	if len(cfg.Whitelist) > 0 {
		logger.Info().
			Int("ips", len(rl.whitelistIPs)).
			Int("cidrs", len(rl.whitelist)).
			Msg("rate limit whitelist configured")
	}

	return rl
}

func (rl *RateLimiter) isWhitelisted(ipStr string) bool {
	if rl.whitelistIPs[ipStr] {
		return true
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range rl.whitelist {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

func limitKey(scope, ip string) string {
	return keyPrefix + "ratelimit:" + scope + ":" + ip
}

// RealIP extracts the client IP from proxy headers or the connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Allow records a request against key when it fits in the window.
// Returns (allowed, remaining, resetAt). Redis errors admit the request.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit RateLimit) (bool, int, time.Time, error) {
	now := time.Now()
	resetAt := now.Add(limit.Window)

	res, err := slidingWindow.Run(ctx, rl.client, []string{key},
		now.UnixMilli(),
		limit.Window.Milliseconds(),
		limit.Requests,
		strconv.FormatInt(now.UnixNano(), 36),
	).Int64Slice()
	if err != nil {
		return true, limit.Requests, resetAt, err
	}

	allowed := res[0] == 1
	used := int(res[1])
	if allowed {
		used++
	}
	remaining := limit.Requests - used
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, resetAt, nil
}

// Middleware enforces the route limits.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)

		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.blocker.IsBlocked(r.Context(), ip) {
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "blocked_request").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("blocked IP attempted request")
			metrics.BlockedRequests.WithLabelValues("ip_blocked").Inc()
			jsonError(w, http.StatusForbidden, "temporarily blocked")
			return
		}

		limit := rl.findLimit(r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := limitKey(limit.Scope, ip)
		allowed, remaining, resetAt, err := rl.Allow(r.Context(), key, *limit)
		if err != nil {
			rl.logger.Error().Err(err).Str("key", key).Msg("rate limit check failed, admitting request")
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))

			metrics.RateLimitHits.WithLabelValues(normalizePath(r.URL.Path)).Inc()
			rl.trackViolation(r.Context(), ip)

			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("scope", limit.Scope).
				Str("endpoint", r.URL.Path).
				Msg("rate limit exceeded")

			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit returns the limit with the longest pattern matching r.
func (rl *RateLimiter) findLimit(r *http.Request) *RateLimit {
	key := r.Method + " " + r.URL.Path

	var (
		best    *RateLimit
		bestLen int
	)
	for pattern, limit := range rl.limits {
		if strings.HasPrefix(key, pattern) && len(pattern) > bestLen {
			l := limit
			best, bestLen = &l, len(pattern)
		}
	}
	return best
}

func (rl *RateLimiter) trackViolation(ctx context.Context, ip string) {
	if !rl.autoBlockEnabled {
		return
	}

	key := keyPrefix + "violations:" + ip
	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, violationWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Error().Err(err).Str("ip", ip).Msg("violation tracking failed")
		return
	}

	if count := incr.Val(); count >= autoBlockAfter {
		rl.blocker.Block(ctx, ip, autoBlockFor, "repeated rate limit violations")
		rl.logger.Warn().
			Str("type", "security").
			Str("event", "ip_auto_blocked").
			Str("ip", ip).
			Int64("violations", count).
			Msg("IP auto-blocked for repeated violations")
	}
}

// IPBlocker keeps temporary IP blocks in Redis.
type IPBlocker struct {
	client *redis.Client
}

// NewIPBlocker creates an IP blocker.
func NewIPBlocker(client *redis.Client) *IPBlocker {
	return &IPBlocker{client: client}
}

func blockKey(ip string) string {
	return keyPrefix + "blocked:" + ip
}

// IsBlocked reports whether ip is currently blocked.
func (b *IPBlocker) IsBlocked(ctx context.Context, ip string) bool {
	n, err := b.client.Exists(ctx, blockKey(ip)).Result()
	return err == nil && n > 0
}

// Block blocks ip for duration.
func (b *IPBlocker) Block(ctx context.Context, ip string, duration time.Duration, reason string) {
	b.client.Set(ctx, blockKey(ip), reason, duration)
}

// internal/middleware/ratelimit.go
//
// Per-client rate limiting for the contact API.
//
// Context
// -------
// Every accepted submission costs a Turnstile round trip and a Discord
// message, so /api/contact* is throttled per client address.  Two stores
// satisfy the same Limiter interface:
//
//   • MemoryLimiter  – token bucket per IP (golang.org/x/time/rate); fine
//                      for a single instance, bounded in size.
//   • RedisLimiter   – fixed one-minute window (INCR, TTL, EXPIRE) shared by
//                      every instance behind the load balancer.
//
// A store error lets the request through and is logged; the captcha still
// guards the endpoint.

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/yanizio/soundhouse/internal/logger"
	"github.com/yanizio/soundhouse/internal/metrics"
	"github.com/yanizio/soundhouse/internal/requestinfo"
)

// Limiter decides whether key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TooManyRequestsMessage is the JSON error body of a 429.
const TooManyRequestsMessage = "Too many requests"

// RateLimit rejects clients over l's budget with 429.  Keys are the
// socket address from requestinfo.ClientIP, so RealIP must run first when
// the site sits behind a proxy.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := requestinfo.ClientIP(r)
			ok, err := l.Allow(r.Context(), ip)
			if err != nil {
				logger.FromContext(r.Context()).Warnw("rate limiter unavailable", "ip", ip, "err", err)
				ok = true
			}
			if !ok {
				metrics.RateLimited.Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": TooManyRequestsMessage})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

/*──────────────────────────── in-process ───────────────────────────────────*/

const (
	sweepEvery  = time.Minute
	maxVisitors = 10000
)

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key.  perMinute <= 0 disables
// limiting.  A bucket that has refilled is identical to a new one, so it is
// dropped at the next sweep; the map never holds more than max keys.
type MemoryLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	max       int
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter allows perMinute requests per minute with the given
// burst.  A burst below 1 is raised to 1.
func NewMemoryLimiter(perMinute, burst int) *MemoryLimiter {
	lim := rate.Inf
	if perMinute > 0 {
		lim = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		visitors:  make(map[string]*visitor),
		limit:     lim,
		burst:     burst,
		max:       maxVisitors,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow implements Limiter.  It never fails.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if m.limit == rate.Inf {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.visitors[key]
	if !ok {
		if now.Sub(m.lastSweep) > sweepEvery || len(m.visitors) >= m.max {
			m.sweep(now)
		}
		if len(m.visitors) >= m.max {
			m.evictOldest()
		}
		v = &visitor{lim: rate.NewLimiter(m.limit, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = now
	return v.lim.AllowN(now, 1), nil
}

// sweep drops every bucket that is full again.
func (m *MemoryLimiter) sweep(now time.Time) {
	for k, v := range m.visitors {
		if v.lim.TokensAt(now) >= float64(m.burst) {
			delete(m.visitors, k)
		}
	}
	m.lastSweep = now
}

// evictOldest makes room when every tracked key is still draining.
func (m *MemoryLimiter) evictOldest() {
	var (
		oldest string
		seen   time.Time
		found  bool
	)
	for k, v := range m.visitors {
		if !found || v.lastSeen.Before(seen) {
			oldest, seen, found = k, v.lastSeen, true
		}
	}
	if found {
		delete(m.visitors, oldest)
	}
}

// Len reports how many keys are tracked.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visitors)
}

/*──────────────────────────── redis ────────────────────────────────────────*/

// RedisLimiter counts requests per key in a one-minute window.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows perMinute requests per key per minute.
// perMinute <= 0 disables limiting.
func NewRedisLimiter(client redis.Cmdable, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "soundhouse:ratelimit:contact:",
		limit:  int64(perMinute),
		window: time.Minute,
	}
}

// Allow implements Limiter.  INCR and TTL are read in one MULTI; any key
// found without a TTL gets one, so a lost EXPIRE heals on the next hit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	k := l.prefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	if _, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		ttl = p.TTL(ctx, k)
		return nil
	}); err != nil {
		return false, fmt.Errorf("redis incr: %w", err)
	}

	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("redis expire: %w", err)
		}
	}
	return incr.Val() <= l.limit, nil
}

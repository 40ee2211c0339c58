package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	apierrors "keyauth/internal/pkg/errors"
	"keyauth/internal/platform/config"
)

// Decision is the answer of a Limiter for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter allows at most limit requests per minute for key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (Decision, error)
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

// MemoryLimiter is a per-process token bucket refilled at limit per minute.
type MemoryLimiter struct {
	store sync.Map // map[string]*bucket
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

func NewMemoryLimiter() *MemoryLimiter {
	l := &MemoryLimiter{now: time.Now, done: make(chan struct{})}
	go l.cleanupLoop(10 * time.Minute)
	return l
}

func (l *MemoryLimiter) cleanupLoop(idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			now := l.now()
			l.store.Range(func(key, value interface{}) bool {
				b := value.(*bucket)
				b.mu.Lock()
				if now.Sub(b.lastAccess) > idle {
					l.store.Delete(key)
				}
				b.mu.Unlock()
				return true
			})
		}
	}
}

func (l *MemoryLimiter) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := l.now()

	val, _ := l.store.LoadOrStore(key, &bucket{tokens: limit, lastRefill: now, lastAccess: now})
	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now

	perToken := time.Minute / time.Duration(limit)
	if refill := int(now.Sub(b.lastRefill) / perToken); refill > 0 {
		b.tokens += refill
		if b.tokens > limit {
			b.tokens = limit
		}
		b.lastRefill = b.lastRefill.Add(time.Duration(refill) * perToken)
	}

	if b.tokens > 0 {
		b.tokens--
		return Decision{Allowed: true}, nil
	}
	return Decision{RetryAfter: perToken - now.Sub(b.lastRefill)}, nil
}

var redisWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter counts requests in fixed one-minute windows shared by every
// server instance.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix), now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := l.now()
	window := now.Unix() / 60
	redisKey := l.prefix + ":" + key + ":" + strconv.FormatInt(window, 10)

	res, err := redisWindowScript.Run(ctx, l.client, []string{redisKey}, 120).Int64()
	if err != nil {
		return Decision{}, err
	}
	if res > int64(limit) {
		reset := time.Unix((window+1)*60, 0)
		return Decision{RetryAfter: reset.Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}

// RateLimitMiddleware applies the configured per-minute limits. Limiter
// errors let the request through.
type RateLimitMiddleware struct {
	limiter     Limiter
	clientLimit int
	adminLimit  int
}

func NewRateLimitMiddleware(limiter Limiter, cfg config.RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:     limiter,
		clientLimit: cfg.ClientPerMinute,
		adminLimit:  cfg.AdminPerMinute,
	}
}

func (m *RateLimitMiddleware) check(r *http.Request, key string, limit int) Decision {
	d, err := m.limiter.Allow(r.Context(), key, limit)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
		}
		return Decision{Allowed: true}
	}
	return d
}

func retryAfterSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// Client limits each application and caller IP pair. It must run after
// ApplicationMiddleware.
func (m *RateLimitMiddleware) Client(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "client:" + ClientIP(r)
		if app := ApplicationFrom(r); app != nil {
			key = "client:" + app.ID + ":" + ClientIP(r)
		}

		if d := m.check(r, key, m.clientLimit); !d.Allowed {
			w.Header().Set("Retry-After", retryAfterSeconds(d.RetryAfter))
			apierrors.WriteClientError(w, http.StatusTooManyRequests, "Too many requests, please try again later", nil)
			return
		}
		next(w, r)
	}
}

// Admin limits each owner account, or the caller IP before authentication.
func (m *RateLimitMiddleware) Admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "admin:" + ClientIP(r)
		if claims := ClaimsFrom(r); claims != nil {
			key = "admin:" + claims.AccountID
		}

		if d := m.check(r, key, m.adminLimit); !d.Allowed {
			w.Header().Set("Retry-After", retryAfterSeconds(d.RetryAfter))
			apierrors.WriteError(w, http.StatusTooManyRequests, apierrors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
			return
		}
		next(w, r)
	}
}

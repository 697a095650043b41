package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/contacts-api/internal/httputil"
	"github.com/redmonkez12/contacts-api/internal/logging"
)

// Purposes with their own request budget
const (
	PurposeRegister       = "register"
	PurposeLogin          = "login"
	PurposeForgotPassword = "forgot-password"
)

const allowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

const redisTimeout = 500 * time.Millisecond

// Store is the part of the redis client the limiter needs
type Store interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

type Config struct {
	Enabled       bool
	Window        time.Duration
	Limits        map[string]int
	EmailCooldown time.Duration
}

// Limiter is a fixed-window request counter kept in Redis.
// Redis failures let the request through.
type Limiter struct {
	store  Store
	cfg    Config
	prefix string
}

func NewLimiter(store Store, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{store: store, cfg: cfg, prefix: "rl:"}
}

// Allow counts one request from ip for purpose and reports whether it fits the budget
func (l *Limiter) Allow(ctx context.Context, ip, purpose string) (bool, error) {
	if l == nil || !l.cfg.Enabled || l.store == nil {
		return true, nil
	}
	limit, ok := l.cfg.Limits[purpose]
	if !ok || limit <= 0 {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	key := l.prefix + purpose + ":" + ip
	seconds := int(l.cfg.Window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}

	count, err := l.store.Eval(ctx, allowScript, []string{key}, seconds).Int()
	if err != nil {
		return true, err
	}
	return count <= limit, nil
}

// ReserveEmail starts the cooldown for emailAddr. It returns false while a
// previous cooldown is still running.
func (l *Limiter) ReserveEmail(ctx context.Context, emailAddr string) (bool, error) {
	if l == nil || !l.cfg.Enabled || l.store == nil || l.cfg.EmailCooldown <= 0 {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	key := l.prefix + "email:" + strings.ToLower(strings.TrimSpace(emailAddr))
	set, err := l.store.SetNX(ctx, key, 1, l.cfg.EmailCooldown).Result()
	if err != nil {
		return true, err
	}
	return set, nil
}

// Middleware rejects requests over the purpose's budget with 429
func (l *Limiter) Middleware(purpose string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.GetLoggerFromContext(r.Context())
			ip := ClientIP(r)

			allowed, err := l.Allow(r.Context(), ip, purpose)
			if err != nil {
				logger.Error("failed to check rate limit", "purpose", purpose, "error", err)
			}
			if !allowed {
				logger.Warn("rate limit exceeded", "purpose", purpose, "ip", ip)
				httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the remote address. chi's RealIP
// middleware has already applied X-Forwarded-For / X-Real-IP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

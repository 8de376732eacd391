package middleware

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
)

// RateLimitMiddleware 令牌桶限流，key 支持 global、ip、user 与 header:Name.
// user 模式需要放在 AuthMiddleware 之后，匿名请求退回按 IP 计.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyMode := strings.ToLower(strings.TrimSpace(cfg.Key))
	keyOf := rateKeyFunc(keyMode, cfg.Key)

	var allow func(key string) bool

	if keyMode == "global" || keyMode == "" {
		limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
		allow = func(string) bool { return limiter.Allow() }
	} else {
		allow = newLimiterSet(cfg).allow
	}

	retryAfter := strconv.Itoa(max(1, int(1/cfg.RPS)))

	return func(c *gin.Context) {
		if hasPathPrefix(c.Request.URL.Path, cfg.ExcludePaths) {
			c.Next()
			return
		}

		if !allow(keyOf(c)) {
			c.Header("Retry-After", retryAfter)
			abort(c, errs.RateLimited("rate limit exceeded, please try again later"))

			return
		}

		c.Next()
	}
}

// rateKeyFunc 按模式生成限流键，header 名保留原始大小写.
func rateKeyFunc(mode, raw string) func(c *gin.Context) string {
	switch {
	case strings.HasPrefix(mode, "header:"):
		h := strings.TrimSpace(raw[len("header:"):])

		return func(c *gin.Context) string {
			if v := c.GetHeader(h); v != "" {
				return "h:" + v
			}

			return "ip:" + clientIP(c)
		}
	case mode == "user":
		return func(c *gin.Context) string {
			if uid := c.GetString("user_id"); uid != "" {
				return "u:" + uid
			}

			return "ip:" + clientIP(c)
		}
	default:
		return func(c *gin.Context) string { return "ip:" + clientIP(c) }
	}
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterSet 按键的 limiter，闲置超过 idle 的条目由后台回收.
type limiterSet struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   rate.Limit
	burst int
	idle  time.Duration
}

func newLimiterSet(cfg configs.RateLimitConfig) *limiterSet {
	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = configs.DefaultRateLimitIdleTTL
	}

	s := &limiterSet{
		m:     map[string]*limiterEntry{},
		rps:   rate.Limit(cfg.RPS),
		burst: cfg.Burst,
		idle:  idle,
	}

	go s.sweep()

	return s
}

func (s *limiterSet) allow(key string) bool {
	now := time.Now()

	s.mu.Lock()

	e, ok := s.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(s.rps, s.burst)}
		s.m[key] = e
	}

	e.lastSeen = now
	s.mu.Unlock()

	return e.l.AllowN(now, 1)
}

func (s *limiterSet) sweep() {
	ticker := time.NewTicker(s.idle / 2)
	defer ticker.Stop()

	for now := range ticker.C {
		s.mu.Lock()

		for k, e := range s.m {
			if now.Sub(e.lastSeen) > s.idle {
				delete(s.m, k)
			}
		}

		s.mu.Unlock()
	}
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	return c.Request.RemoteAddr
}

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/log"
	"github.com/yeisme/cloudvault/pkg/metrics"
)

// breakers 每个路由族一个熔断器，某个后端故障不会拖垮其他接口.
type breakers struct {
	cfg configs.CircuitBreakerConfig
	m   sync.Map // route -> *gobreaker.TwoStepCircuitBreaker
}

func (b *breakers) get(route string) *gobreaker.TwoStepCircuitBreaker {
	if cb, ok := b.m.Load(route); ok {
		return cb.(*gobreaker.TwoStepCircuitBreaker)
	}

	cb, _ := b.m.LoadOrStore(route, gobreaker.NewTwoStepCircuitBreaker(b.settings(route)))

	return cb.(*gobreaker.TwoStepCircuitBreaker)
}

func (b *breakers) settings(route string) gobreaker.Settings {
	cfg := b.cfg

	return gobreaker.Settings{
		Name:        route,
		MaxRequests: cfg.MaxRequestsInHalf,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= cfg.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))

			l := log.Component("breaker")
			l.Warn().Str("route", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
		},
	}
}

// routeFamily 取路由模板的前三段，如 /api/v1/files/:id -> /api/v1/files.
func routeFamily(c *gin.Context) string {
	p := c.FullPath()
	if p == "" {
		return unmatchedRoute
	}

	parts := strings.SplitN(strings.TrimPrefix(p, "/"), "/", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}

	return "/" + strings.Join(parts, "/")
}

// CircuitBreakerMiddleware 5xx 计为失败，熔断打开时直接返回 503.
func CircuitBreakerMiddleware(cfg configs.CircuitBreakerConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	b := &breakers{cfg: cfg}

	return func(c *gin.Context) {
		if hasPathPrefix(c.Request.URL.Path, cfg.ExcludePaths) {
			c.Next()
			return
		}

		done, err := b.get(routeFamily(c)).Allow()
		if err != nil {
			c.Header("Retry-After", strconv.Itoa(max(int(cfg.OpenTimeout.Seconds()), 1)))
			abort(c, errs.Unavailable("service temporarily unavailable", err))

			return
		}

		c.Next()
		done(c.Writer.Status() < http.StatusInternalServerError)
	}
}

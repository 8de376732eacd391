package middleware_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/middleware"
)

func newLimitedRouter(cfg configs.RateLimitConfig) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set("user_id", u)
		}

		c.Next()
	}, middleware.RateLimitMiddleware(cfg))

	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.GET("/api/v1/files", ok)
	r.GET("/api/v1/health/db", ok)

	return r
}

func TestRateLimitByUser(t *testing.T) {
	r := newLimitedRouter(configs.RateLimitConfig{
		Enabled:      true,
		RPS:          0.001,
		Burst:        2,
		Key:          "user",
		ExcludePaths: []string{"/api/v1/health"},
	})

	as := func(u string) func(*http.Request) {
		return func(req *http.Request) { req.Header.Set("X-Test-User", u) }
	}

	assert.Equal(t, http.StatusNoContent, do(r, "/api/v1/files", as("a")).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/api/v1/files", as("a")).Code)

	w := do(r, "/api/v1/files", as("a"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 其他用户有独立的配额
	assert.Equal(t, http.StatusNoContent, do(r, "/api/v1/files", as("b")).Code)

	// 排除的路径不受限
	assert.Equal(t, http.StatusNoContent, do(r, "/api/v1/health/db", as("a")).Code)
}

func TestRateLimitGlobal(t *testing.T) {
	r := newLimitedRouter(configs.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1, Key: "global"})

	assert.Equal(t, http.StatusNoContent, do(r, "/api/v1/files", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "/api/v1/files", nil).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := newLimitedRouter(configs.RateLimitConfig{Enabled: false, RPS: 0.001, Burst: 1})

	for range 5 {
		assert.Equal(t, http.StatusNoContent, do(r, "/api/v1/files", nil).Code)
	}
}

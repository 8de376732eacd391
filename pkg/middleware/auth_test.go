package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/configs"
	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/identity"
	"github.com/yeisme/cloudvault/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type downVerifier struct{}

func (downVerifier) Verify(context.Context, identity.Credential) (*identity.Identity, error) {
	return nil, errs.Unavailable("authentication service unavailable", nil)
}

func passThrough(_ context.Context, id *identity.Identity) (*identity.Identity, error) {
	return id, nil
}

func authConf() configs.AuthConfig {
	return configs.AuthConfig{
		Enabled:       true,
		CookieName:    "accessToken",
		SkipPaths:     []string{"/api/v1/health"},
		OptionalPaths: []string{"/api/v1/public"},
	}
}

// newAuthRouter 每个路由返回当前身份，匿名时 user 为空.
func newAuthRouter(conf configs.AuthConfig, v identity.Verifier, admins ...string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.AuthMiddleware(conf, v, passThrough), middleware.RoleMiddleware(admins))

	whoami := func(c *gin.Context) {
		user := ""
		if id := ctxPkg.GetIdentity(c.Request.Context()); id != nil {
			user = id.UserID
		}

		c.JSON(http.StatusOK, gin.H{"user": user, "role": middleware.GetRole(c).String()})
	}

	r.GET("/api/v1/health/db", whoami)
	r.GET("/api/v1/public/links/:id", whoami)
	r.GET("/api/v1/users/me", whoami)
	r.GET("/api/v1/scheduler/jobs", middleware.RequireMinRole(middleware.RoleAdmin), whoami)

	return r
}

func do(r http.Handler, path string, mod func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if mod != nil {
		mod(req)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestAuthMiddlewareJWT(t *testing.T) {
	j, err := identity.NewJWTVerifier("s3cret", time.Hour)
	require.NoError(t, err)

	token, err := j.Issue(&identity.Identity{UserID: "u-1", Email: "a@example.com", Name: "A"}, time.Now())
	require.NoError(t, err)

	r := newAuthRouter(authConf(), j)

	w := do(r, "/api/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/api/v1/users/me", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: token})
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"u-1"`)

	w = do(r, "/api/v1/users/me", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"user"`)

	w = do(r, "/api/v1/users/me", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer nope")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")
}

func TestAuthMiddlewarePaths(t *testing.T) {
	j, err := identity.NewJWTVerifier("s3cret", time.Hour)
	require.NoError(t, err)

	r := newAuthRouter(authConf(), j)

	// 跳过的路径不解析身份
	w := do(r, "/api/v1/health/db", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer nope")
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// optional 路径上无效凭据按匿名处理
	w = do(r, "/api/v1/public/links/abc", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer nope")
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":""`)
	assert.Contains(t, w.Body.String(), `"role":"anonymous"`)
}

func TestAuthMiddlewareUnavailable(t *testing.T) {
	r := newAuthRouter(authConf(), downVerifier{})

	w := do(r, "/api/v1/users/me", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "t"})
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// optional 路径上认证服务不可用同样返回 503，而不是静默匿名
	w = do(r, "/api/v1/public/links/abc", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "t"})
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthMiddlewareHeaderModeAndRoles(t *testing.T) {
	r := newAuthRouter(authConf(), identity.HeaderVerifier{}, "Boss@Example.com")

	w := do(r, "/api/v1/scheduler/jobs", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/api/v1/scheduler/jobs", func(req *http.Request) {
		req.Header.Set(identity.HeaderEmail, "ana@example.com")
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, "/api/v1/scheduler/jobs", func(req *http.Request) {
		req.Header.Set(identity.HeaderForwardedEmail, "boss@example.com")
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	conf := authConf()
	conf.Enabled = false

	r := newAuthRouter(conf, identity.HeaderVerifier{})

	w := do(r, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":""`)

	w = do(r, "/api/v1/users/me", func(req *http.Request) {
		req.Header.Set(identity.HeaderEmail, "ana@example.com")
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"user":""`)
}

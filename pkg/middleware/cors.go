package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/identity"
)

// LinkPasswordHeader 访问带密码的分享链接时携带的请求头.
const LinkPasswordHeader = "X-Link-Password"

// CORSMiddleware 配置了 cors_origins 时只放行这些来源并允许携带会话 cookie，
// 否则放行任意来源但不带凭据.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Authorization",
			LinkPasswordHeader, CacheBypassHeader,
			identity.HeaderUser, identity.HeaderEmail,
		},
		ExposeHeaders: []string{"Content-Disposition", "Content-Length", "ETag", "X-Cache", "Retry-After", TraceIDHeader},
		MaxAge:        12 * time.Hour,
	}

	if len(cfg.CORSOrigins) > 0 {
		conf.AllowOrigins = cfg.CORSOrigins
		conf.AllowCredentials = true
	} else {
		conf.AllowAllOrigins = true
	}

	return cors.New(conf)
}

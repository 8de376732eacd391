package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/handle"
)

// RegisterHealthCheckRoute 健康检查不经认证，限流与熔断也跳过 /health 前缀.
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	h := g.Group("/health")

	h.GET("", handle.Health)
	h.GET("/db", handle.HealthDB)
	h.GET("/blob", handle.HealthBlob)
	h.GET("/kv", handle.HealthKV)
	h.GET("/mq", handle.HealthMQ)
}

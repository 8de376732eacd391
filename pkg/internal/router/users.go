package router

import (
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/cloudvault/pkg/cache"
	"github.com/yeisme/cloudvault/pkg/internal/handle"
)

// RegisterUserRoutes 当前用户与统计.
func RegisterUserRoutes(g *gin.RouterGroup, c *appcache.Cache) {
	userRoutes := g.Group("/users")
	{
		userRoutes.GET("/me", handle.Me)
		userRoutes.GET("/storage", handle.Storage)
	}

	// 统计允许 30s 内的旧数据
	statsRoutes := g.Group("/stats", cached(c)...)
	{
		statsRoutes.GET("/summary", handle.StatsSummary)
		statsRoutes.GET("/dashboard", handle.StatsDashboard)
	}
}

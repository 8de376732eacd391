// Package router 管理路由配置，把 handle 中的处理器绑定到 /api/v1 下的各个分组.
package router

import (
	"time"

	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/cloudvault/pkg/cache"
	"github.com/yeisme/cloudvault/pkg/middleware"
	"github.com/yeisme/cloudvault/pkg/scheduler"
)

// statsCacheTTL 统计接口的缓存时长.
const statsCacheTTL = 30 * time.Second

// Options 路由依赖，均可为空.
type Options struct {
	// Cache 为空时统计接口不缓存
	Cache *appcache.Cache
	// Scheduler 为空时调度器路由返回 503
	Scheduler *scheduler.Scheduler
}

// Register 注册全部业务路由到 g（通常为 /api/v1）.
func Register(g *gin.RouterGroup, opts Options) {
	RegisterAuthRoutes(g)
	RegisterUserRoutes(g, opts.Cache)
	RegisterFolderRoutes(g)
	RegisterFileRoutes(g)
	RegisterShareRoutes(g)
	RegisterLinkRoutes(g)
	RegisterPublicRoutes(g)
	RegisterHealthCheckRoute(g)
	RegisterSchedulerRoutes(g, opts.Scheduler)
}

// cached 有缓存实例时返回按用户隔离的缓存中间件.
func cached(c *appcache.Cache) []gin.HandlerFunc {
	if c == nil {
		return nil
	}

	return []gin.HandlerFunc{middleware.CacheMiddleware(middleware.PerUserCacheConfig(c, statsCacheTTL))}
}

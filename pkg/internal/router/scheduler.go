package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/handle"
	"github.com/yeisme/cloudvault/pkg/middleware"
	"github.com/yeisme/cloudvault/pkg/scheduler"
)

// RegisterSchedulerRoutes 维护任务管理，仅管理员.
func RegisterSchedulerRoutes(g *gin.RouterGroup, sched *scheduler.Scheduler) {
	schedRoutes := g.Group("/scheduler",
		middleware.RequireMinRole(middleware.RoleAdmin),
		middleware.SchedulerMiddleware(sched),
	)
	{
		schedRoutes.GET("/jobs", handle.SchedulerJobs)
		schedRoutes.GET("/jobs/:name", handle.SchedulerJob)
		schedRoutes.POST("/jobs/stop", handle.SchedulerStopJobs)
		schedRoutes.POST("/jobs/:name/run", handle.SchedulerRunJob)
		schedRoutes.DELETE("/jobs/:id", handle.SchedulerRemoveJob)
		schedRoutes.GET("/queue/waiting", handle.SchedulerQueueWaiting)
	}
}

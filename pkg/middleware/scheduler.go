package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/scheduler"
)

const schedulerKey = "scheduler"

// SchedulerMiddleware 给调度器管理路由注入调度器，未启用时直接返回 503.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sched == nil {
			abort(c, errs.Unavailable("scheduler disabled", nil))
			return
		}

		c.Set(schedulerKey, sched)
		c.Next()
	}
}

// GetScheduler 只在 SchedulerMiddleware 之后的 handler 中可用.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	sched, _ := c.MustGet(schedulerKey).(*scheduler.Scheduler)
	return sched
}

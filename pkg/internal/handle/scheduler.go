package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/middleware"
	"github.com/yeisme/cloudvault/pkg/scheduler"
)

// schedulerErr 把调度器的哨兵错误映射为业务错误.
func schedulerErr(err error) error {
	if errors.Is(err, scheduler.ErrJobNotFound) {
		return errs.NotFound("job not found")
	}

	return errs.Internal(err)
}

// SchedulerJobs 任务列表，按名称排序.
//
//	@Summary	任务列表
//	@Tags		调度器
//	@Produce	json
//	@Success	200	{object}	map[string][]scheduler.JobInfo
//	@Router		/api/v1/scheduler/jobs [get]
func SchedulerJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": middleware.GetScheduler(c).GetJobInfos()})
}

// SchedulerJob 单个任务的运行状态.
//
//	@Summary	任务详情
//	@Tags		调度器
//	@Produce	json
//	@Param		name	path		string	true	"任务名称"
//	@Success	200		{object}	scheduler.JobInfo
//	@Failure	404		{object}	map[string]string
//	@Router		/api/v1/scheduler/jobs/{name} [get]
func SchedulerJob(c *gin.Context) {
	info, err := middleware.GetScheduler(c).JobInfo(c.Param("name"))
	if err != nil {
		fail(c, schedulerErr(err), "get job")
		return
	}

	c.JSON(http.StatusOK, info)
}

// SchedulerRunJob 立即触发一次，不等待执行结束.
//
//	@Summary	立即执行任务
//	@Tags		调度器
//	@Produce	json
//	@Param		name	path		string	true	"任务名称"
//	@Success	202		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/api/v1/scheduler/jobs/{name}/run [post]
func SchedulerRunJob(c *gin.Context) {
	name := c.Param("name")
	if err := middleware.GetScheduler(c).RunJobNow(name); err != nil {
		fail(c, schedulerErr(err), "run job")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job": name, "message": "job triggered"})
}

// SchedulerStopJobs 停止全部任务，进程重启后按配置重新注册.
//
//	@Summary	停止全部任务
//	@Tags		调度器
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/api/v1/scheduler/jobs/stop [post]
func SchedulerStopJobs(c *gin.Context) {
	if err := middleware.GetScheduler(c).StopJobs(); err != nil {
		fail(c, schedulerErr(err), "stop jobs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "jobs stopped"})
}

// SchedulerRemoveJob 按 gocron 任务 ID 移除.
//
//	@Summary	删除任务
//	@Tags		调度器
//	@Produce	json
//	@Param		id	path		string	true	"任务 ID"
//	@Success	204
//	@Failure	400	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Router		/api/v1/scheduler/jobs/{id} [delete]
func SchedulerRemoveJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, errs.BadRequest("invalid job id"), "remove job")
		return
	}

	if err := middleware.GetScheduler(c).RemoveJob(id); err != nil {
		fail(c, schedulerErr(err), "remove job")
		return
	}

	c.Status(http.StatusNoContent)
}

// SchedulerQueueWaiting 等待执行的任务数.
//
//	@Summary	等待中的任务数
//	@Tags		调度器
//	@Produce	json
//	@Success	200	{object}	map[string]int
//	@Router		/api/v1/scheduler/queue/waiting [get]
func SchedulerQueueWaiting(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"waiting": middleware.GetScheduler(c).JobsWaitingInQueue()})
}

package handle

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/rule"
)

const defaultTrendDays = 14

// Me 当前用户.
//
//	@Summary	当前用户信息
//	@Tags		用户
//	@Produce	json
//	@Success	200	{object}	types.User
//	@Failure	401	{object}	map[string]string
//	@Router		/api/v1/users/me [get]
func Me(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	u, err := service.NewUserService(c.Request.Context()).Get(c.Request.Context(), user)
	if err != nil {
		fail(c, err, "get user failed")
		return
	}

	c.JSON(http.StatusOK, u)
}

// Storage 存储用量与配额.
//
//	@Summary	存储用量
//	@Tags		用户
//	@Produce	json
//	@Success	200	{object}	types.StorageUsage
//	@Failure	401	{object}	map[string]string
//	@Router		/api/v1/users/storage [get]
func Storage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	usage, err := service.NewUserService(c.Request.Context()).Storage(c.Request.Context(), user)
	if err != nil {
		fail(c, err, "storage usage failed")
		return
	}

	c.JSON(http.StatusOK, usage)
}

// StatsDashboard 文件统计看板，days 控制趋势天数.
//
//	@Summary	统计看板
//	@Tags		统计
//	@Produce	json
//	@Param		days	query		int	false	"趋势天数，默认 14"
//	@Success	200		{object}	types.StatsDashboard
//	@Failure	400		{object}	map[string]string
//	@Failure	401		{object}	map[string]string
//	@Router		/api/v1/stats/dashboard [get]
func StatsDashboard(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	days := defaultTrendDays

	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			err = rule.ValidateVar(n, "min=1,max=60")
		}

		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 60"})
			return
		}

		days = n
	}

	d, err := service.NewStatsService(c.Request.Context()).Dashboard(c.Request.Context(), user, days)
	if err != nil {
		fail(c, err, "stats dashboard failed")
		return
	}

	c.JSON(http.StatusOK, d)
}

// StatsSummary 计数与用量汇总.
//
//	@Summary	统计汇总
//	@Tags		统计
//	@Produce	json
//	@Success	200	{object}	types.StatsSummary
//	@Failure	401	{object}	map[string]string
//	@Router		/api/v1/stats/summary [get]
func StatsSummary(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	s, err := service.NewStatsService(c.Request.Context()).Summary(c.Request.Context(), user)
	if err != nil {
		fail(c, err, "stats summary failed")
		return
	}

	c.JSON(http.StatusOK, s)
}

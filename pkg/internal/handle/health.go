package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/configs"
	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
)

const timeout = 2 * time.Second

func healthResult(c *gin.Context, component string, err error) {
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": component, "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": component, "status": "ok"})
}

func notInitialized(c *gin.Context, component string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"component": component, "status": "unhealthy", "error": component + " client not initialized"})
}

// Health 汇总各存储组件的状态，任一异常返回 503.
//
//	@Summary	汇总健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Failure	503	{object}	map[string]any
//	@Router		/api/v1/health [get]
func Health(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())
	if mgr == nil {
		notInitialized(c, "storage")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	status := http.StatusOK
	components := gin.H{}

	for name, err := range mgr.HealthCheck(ctx) {
		if err != nil {
			status = http.StatusServiceUnavailable
			components[name] = err.Error()

			continue
		}

		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, gin.H{"status": overall, "version": configs.AppVersion, "components": components})
}

// HealthDB 数据库健康检查.
//
//	@Summary	数据库健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	map[string]string
//	@Router		/api/v1/health/db [get]
func HealthDB(c *gin.Context) {
	dbc := ctxPkg.GetDBClient(c.Request.Context())
	if dbc == nil || dbc.DB == nil {
		notInitialized(c, "db")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	healthResult(c, "db", dbc.HealthCheck(ctx))
}

// HealthBlob 对象存储健康检查，列举一次前缀即可.
//
//	@Summary	对象存储健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	map[string]string
//	@Router		/api/v1/health/blob [get]
func HealthBlob(c *gin.Context) {
	store := ctxPkg.GetBlobStore(c.Request.Context())
	if store == nil {
		notInitialized(c, "blob")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	_, err := store.List(ctx, "health/", 1)
	healthResult(c, "blob", err)
}

// HealthKV 缓存健康检查.
//
//	@Summary	缓存健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	map[string]string
//	@Router		/api/v1/health/kv [get]
func HealthKV(c *gin.Context) {
	kvc := ctxPkg.GetKVClient(c.Request.Context())
	if kvc == nil || kvc.KVStore == nil {
		notInitialized(c, "kv")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := kvc.Healthy(ctx); err != nil {
		healthResult(c, "kv", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "kv", "status": "ok", "type": string(kvc.Type())})
}

// HealthMQ 消息队列健康检查，未启用事件时返回 disabled.
//
//	@Summary	消息队列健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/api/v1/health/mq [get]
func HealthMQ(c *gin.Context) {
	mqc := ctxPkg.GetMQClient(c.Request.Context())
	if mqc == nil {
		c.JSON(http.StatusOK, gin.H{"component": "mq", "status": "disabled"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "mq", "status": "ok", "type": string(mqc.Type())})
}

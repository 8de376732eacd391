// Package api 对外暴露 HTTP 接口的挂载入口，业务路由统一位于 /api/v1 下.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/router"
)

// BasePath 业务接口前缀.
const BasePath = "/api/v1"

// RegisterGroup 把业务路由与 swagger 文档挂到 e.
func RegisterGroup(e *gin.Engine, opts router.Options) *gin.Engine {
	router.Register(e.Group(BasePath), opts)
	router.RegisterSwaggerRoute(e)

	return e
}

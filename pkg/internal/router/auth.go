package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/handle"
)

// RegisterAuthRoutes 本地注册与登录；除 update 外默认不经过认证中间件.
func RegisterAuthRoutes(g *gin.RouterGroup) {
	authRoutes := g.Group("/auth")
	{
		authRoutes.POST("/signup", handle.Signup)
		authRoutes.POST("/signin", handle.Signin)
		authRoutes.POST("/signout", handle.Signout)
		authRoutes.PATCH("/update", handle.UpdateProfile)
	}
}

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/handle"
)

// RegisterPublicRoutes 允许匿名访问的路由，登录用户访问时同样识别身份.
func RegisterPublicRoutes(g *gin.RouterGroup) {
	publicRoutes := g.Group("/public")
	{
		publicRoutes.GET("/download/:fileId/:token", handle.PublicDownload)
		publicRoutes.GET("/folders/:folderId", handle.GetFolder)
		publicRoutes.GET("/files/:fileId", handle.GetFile)

		linkRoutes := publicRoutes.Group("/links/:linkId")
		{
			linkRoutes.GET("", handle.GetPublicLink)
			linkRoutes.POST("/access", handle.AccessLink)
			linkRoutes.GET("/download", handle.DownloadLink)
		}
	}
}

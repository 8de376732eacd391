package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/handle"
)

// RegisterFileRoutes 文件上传、下载与元数据.
func RegisterFileRoutes(g *gin.RouterGroup) {
	fileRoutes := g.Group("/files")
	{
		uploadRoutes := fileRoutes.Group("/upload")
		{
			uploadRoutes.POST("", handle.UploadFile)
			uploadRoutes.POST("/signed", handle.SignedUpload)
			uploadRoutes.POST("/complete", handle.CompleteUpload)
			// 本地磁盘后端的直传目标
			uploadRoutes.PUT("/local/*key", handle.ReceiveLocalUpload)
		}

		fileRoutes.GET("", handle.ListFiles)
		fileRoutes.GET("/shared-with-me", handle.FilesSharedWithMe)
		fileRoutes.GET("/shared-by-me", handle.FilesSharedByMe)

		single := fileRoutes.Group("/:fileId")
		{
			single.GET("", handle.GetFile)
			single.GET("/download", handle.DownloadFile)
			single.GET("/download-token", handle.DownloadToken)
			single.PATCH("", handle.UpdateFile)
			single.DELETE("", handle.DeleteFile)
		}
	}
}

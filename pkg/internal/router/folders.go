package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/handle"
)

// RegisterFolderRoutes 文件夹树.
func RegisterFolderRoutes(g *gin.RouterGroup) {
	folderRoutes := g.Group("/folders")
	{
		folderRoutes.GET("", handle.ListFolders)
		folderRoutes.GET("/shared-with-me", handle.FoldersSharedWithMe)
		folderRoutes.GET("/shared-by-me", handle.FoldersSharedByMe)
		folderRoutes.POST("", handle.CreateFolder)

		single := folderRoutes.Group("/:folderId")
		{
			single.GET("", handle.GetFolder)
			single.GET("/files", handle.ListFolderFiles)
			single.POST("/upload", handle.UploadToFolder)
			single.PATCH("", handle.UpdateFolder)
			single.DELETE("", handle.DeleteFolder)
		}
	}
}

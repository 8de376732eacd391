package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/handle"
)

// RegisterShareRoutes 文件夹与文件的直接共享.
func RegisterShareRoutes(g *gin.RouterGroup) {
	folderShares := g.Group("/folder-shares")
	{
		folderShares.POST("", handle.CreateFolderShare)
		folderShares.GET("/folder/:folderId", handle.ListFolderShares)
		folderShares.PATCH("/:shareId", handle.UpdateFolderShare)
		folderShares.DELETE("/:shareId", handle.RemoveFolderShare)
	}

	fileShares := g.Group("/file-shares")
	{
		fileShares.POST("", handle.CreateFileShare)
		fileShares.GET("/file/:fileId", handle.ListFileShares)
		fileShares.PATCH("/:shareId", handle.UpdateFileShare)
		fileShares.DELETE("/:shareId", handle.RemoveFileShare)
	}
}

// RegisterLinkRoutes 分享链接管理.
func RegisterLinkRoutes(g *gin.RouterGroup) {
	linkRoutes := g.Group("/links")
	{
		linkRoutes.POST("", handle.CreateLink)
		linkRoutes.GET("", handle.ListLinks)
		linkRoutes.DELETE("/:linkId", handle.DeleteLink)
	}
}

package handle

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

// ListFolders 调用方拥有的全部文件夹.
//
//	@Summary	列出我的文件夹
//	@Tags		文件夹
//	@Produce	json
//	@Success	200	{object}	types.ListFoldersResponse
//	@Failure	401	{object}	map[string]string
//	@Router		/api/v1/folders [get]
func ListFolders(c *gin.Context) {
	listFolders(c, (*service.FolderService).List)
}

// FoldersSharedWithMe 他人共享给我的文件夹.
//
//	@Summary	共享给我的文件夹
//	@Tags		文件夹
//	@Produce	json
//	@Success	200	{object}	types.ListFoldersResponse
//	@Router		/api/v1/folders/shared-with-me [get]
func FoldersSharedWithMe(c *gin.Context) {
	listFolders(c, (*service.FolderService).SharedWithMe)
}

// FoldersSharedByMe 我共享出去的文件夹.
//
//	@Summary	我共享的文件夹
//	@Tags		文件夹
//	@Produce	json
//	@Success	200	{object}	types.ListFoldersResponse
//	@Router		/api/v1/folders/shared-by-me [get]
func FoldersSharedByMe(c *gin.Context) {
	listFolders(c, (*service.FolderService).SharedByMe)
}

func listFolders(c *gin.Context, fn func(s *service.FolderService, ctx context.Context, userID string) ([]types.Folder, error)) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	folders, err := fn(service.NewFolderService(c.Request.Context()), c.Request.Context(), user)
	if err != nil {
		fail(c, err, "list folders failed")
		return
	}

	c.JSON(http.StatusOK, types.ListFoldersResponse{Folders: folders})
}

// GetFolder 文件夹详情，包含子文件夹与文件；公开文件夹允许匿名访问.
//
//	@Summary	文件夹详情
//	@Tags		文件夹
//	@Produce	json
//	@Param		folderId	path		string	true	"文件夹 ID，myFiles 表示根目录"
//	@Success	200			{object}	types.FolderDetail
//	@Failure	403			{object}	map[string]string
//	@Failure	404			{object}	map[string]string
//	@Router		/api/v1/folders/{folderId} [get]
func GetFolder(c *gin.Context) {
	d, err := service.NewFolderService(c.Request.Context()).Get(c.Request.Context(), c.Param("folderId"), currentUser(c))
	if err != nil {
		fail(c, err, "get folder failed")
		return
	}

	c.JSON(http.StatusOK, d)
}

// ListFolderFiles 文件夹内的文件.
//
//	@Summary	文件夹内文件
//	@Tags		文件夹
//	@Produce	json
//	@Param		folderId	path		string	true	"文件夹 ID"
//	@Success	200			{object}	types.ListFilesResponse
//	@Failure	403			{object}	map[string]string
//	@Failure	404			{object}	map[string]string
//	@Router		/api/v1/folders/{folderId}/files [get]
func ListFolderFiles(c *gin.Context) {
	files, err := service.NewFolderService(c.Request.Context()).ListFiles(c.Request.Context(), c.Param("folderId"), currentUser(c))
	if err != nil {
		fail(c, err, "list folder files failed")
		return
	}

	c.JSON(http.StatusOK, types.ListFilesResponse{Files: files})
}

// CreateFolder 新建文件夹，parent_id 缺省时放在根目录下.
//
//	@Summary	新建文件夹
//	@Tags		文件夹
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.CreateFolderRequest	true	"文件夹信息"
//	@Success	201		{object}	types.Folder
//	@Failure	400		{object}	map[string]string
//	@Failure	403		{object}	map[string]string
//	@Router		/api/v1/folders [post]
func CreateFolder(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req types.CreateFolderRequest
	if !bind(c, &req) {
		return
	}

	f, err := service.NewFolderService(c.Request.Context()).Create(c.Request.Context(), user, &req)
	if err != nil {
		fail(c, err, "create folder failed")
		return
	}

	c.JSON(http.StatusCreated, f)
}

// UpdateFolder 修改文件夹属性或移动位置.
//
//	@Summary	修改文件夹
//	@Tags		文件夹
//	@Accept		json
//	@Produce	json
//	@Param		folderId	path		string						true	"文件夹 ID"
//	@Param		body		body		types.UpdateFolderRequest	true	"修改内容"
//	@Success	200			{object}	types.Folder
//	@Failure	400			{object}	map[string]string
//	@Failure	403			{object}	map[string]string
//	@Router		/api/v1/folders/{folderId} [patch]
func UpdateFolder(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req types.UpdateFolderRequest
	if !bind(c, &req) {
		return
	}

	f, err := service.NewFolderService(c.Request.Context()).Update(c.Request.Context(), c.Param("folderId"), user, &req)
	if err != nil {
		fail(c, err, "update folder failed")
		return
	}

	c.JSON(http.StatusOK, f)
}

// DeleteFolder 删除文件夹，非空时需要 recursive=true.
//
//	@Summary	删除文件夹
//	@Tags		文件夹
//	@Produce	json
//	@Param		folderId	path		string	true	"文件夹 ID"
//	@Param		recursive	query		bool	false	"递归删除"
//	@Success	200			{object}	types.DeleteFolderResult
//	@Failure	400			{object}	map[string]string
//	@Failure	403			{object}	map[string]string
//	@Router		/api/v1/folders/{folderId} [delete]
func DeleteFolder(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	res, err := service.NewFolderService(c.Request.Context()).Delete(c.Request.Context(), c.Param("folderId"), user, queryBool(c, "recursive", false))
	if err != nil {
		fail(c, err, "delete folder failed")
		return
	}

	c.JSON(http.StatusOK, res)
}

// UploadToFolder multipart 上传到指定文件夹.
//
//	@Summary	上传到文件夹
//	@Tags		文件上传
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		folderId	path		string	true	"文件夹 ID"
//	@Param		file		formData	file	true	"文件内容"
//	@Success	201			{object}	types.File
//	@Failure	400			{object}	map[string]string
//	@Failure	403			{object}	map[string]string
//	@Router		/api/v1/folders/{folderId}/upload [post]
func UploadToFolder(c *gin.Context) {
	uploadMultipart(c, c.Param("folderId"))
}

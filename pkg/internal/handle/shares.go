package handle

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

// shareOps 文件夹与文件共享的差异只在调用的服务方法.
type shareOps struct {
	create func(*service.ShareService, context.Context, string, *types.CreateShareRequest) (*types.Share, error)
	list   func(*service.ShareService, context.Context, string, string) ([]types.Share, error)
	update func(*service.ShareService, context.Context, string, string, *types.UpdateShareRequest) (*types.Share, error)
	remove func(*service.ShareService, context.Context, string, string) error
}

var (
	folderShares = shareOps{
		create: (*service.ShareService).CreateFolderShare,
		list:   (*service.ShareService).ListFolderShares,
		update: (*service.ShareService).UpdateFolderShare,
		remove: (*service.ShareService).RemoveFolderShare,
	}
	fileShares = shareOps{
		create: (*service.ShareService).CreateFileShare,
		list:   (*service.ShareService).ListFileShares,
		update: (*service.ShareService).UpdateFileShare,
		remove: (*service.ShareService).RemoveFileShare,
	}
)

// CreateFolderShare 授予文件夹权限.
//
//	@Summary	共享文件夹
//	@Tags		共享
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.CreateShareRequest	true	"共享信息"
//	@Success	201		{object}	types.Share
//	@Failure	400		{object}	map[string]string
//	@Failure	403		{object}	map[string]string
//	@Failure	409		{object}	map[string]string
//	@Router		/api/v1/folder-shares [post]
func CreateFolderShare(c *gin.Context) { createShare(c, folderShares) }

// ListFolderShares 文件夹的共享列表，仅所有者.
//
//	@Summary	文件夹共享列表
//	@Tags		共享
//	@Produce	json
//	@Param		folderId	path		string	true	"文件夹 ID"
//	@Success	200			{object}	types.ListSharesResponse
//	@Failure	403			{object}	map[string]string
//	@Router		/api/v1/folder-shares/folder/{folderId} [get]
func ListFolderShares(c *gin.Context) { listShares(c, folderShares, c.Param("folderId")) }

// UpdateFolderShare 修改角色或过期时间.
//
//	@Summary	修改文件夹共享
//	@Tags		共享
//	@Accept		json
//	@Produce	json
//	@Param		shareId	path		string						true	"共享 ID"
//	@Param		body	body		types.UpdateShareRequest	true	"修改内容"
//	@Success	200		{object}	types.Share
//	@Failure	400		{object}	map[string]string
//	@Failure	403		{object}	map[string]string
//	@Router		/api/v1/folder-shares/{shareId} [patch]
func UpdateFolderShare(c *gin.Context) { updateShare(c, folderShares) }

// RemoveFolderShare 撤销文件夹共享.
//
//	@Summary	撤销文件夹共享
//	@Tags		共享
//	@Param		shareId	path	string	true	"共享 ID"
//	@Success	204
//	@Failure	403	{object}	map[string]string
//	@Router		/api/v1/folder-shares/{shareId} [delete]
func RemoveFolderShare(c *gin.Context) { removeShare(c, folderShares) }

// CreateFileShare 授予文件权限，只允许 VIEWER 与 EDITOR.
//
//	@Summary	共享文件
//	@Tags		共享
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.CreateShareRequest	true	"共享信息"
//	@Success	201		{object}	types.Share
//	@Failure	400		{object}	map[string]string
//	@Failure	403		{object}	map[string]string
//	@Failure	409		{object}	map[string]string
//	@Router		/api/v1/file-shares [post]
func CreateFileShare(c *gin.Context) { createShare(c, fileShares) }

// ListFileShares 文件的共享列表，仅所有者.
//
//	@Summary	文件共享列表
//	@Tags		共享
//	@Produce	json
//	@Param		fileId	path		string	true	"文件 ID"
//	@Success	200		{object}	types.ListSharesResponse
//	@Failure	403		{object}	map[string]string
//	@Router		/api/v1/file-shares/file/{fileId} [get]
func ListFileShares(c *gin.Context) { listShares(c, fileShares, c.Param("fileId")) }

// UpdateFileShare 修改角色或过期时间.
//
//	@Summary	修改文件共享
//	@Tags		共享
//	@Accept		json
//	@Produce	json
//	@Param		shareId	path		string						true	"共享 ID"
//	@Param		body	body		types.UpdateShareRequest	true	"修改内容"
//	@Success	200		{object}	types.Share
//	@Failure	400		{object}	map[string]string
//	@Failure	403		{object}	map[string]string
//	@Router		/api/v1/file-shares/{shareId} [patch]
func UpdateFileShare(c *gin.Context) { updateShare(c, fileShares) }

// RemoveFileShare 撤销文件共享.
//
//	@Summary	撤销文件共享
//	@Tags		共享
//	@Param		shareId	path	string	true	"共享 ID"
//	@Success	204
//	@Failure	403	{object}	map[string]string
//	@Router		/api/v1/file-shares/{shareId} [delete]
func RemoveFileShare(c *gin.Context) { removeShare(c, fileShares) }

func createShare(c *gin.Context, ops shareOps) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req types.CreateShareRequest
	if !bind(c, &req) {
		return
	}

	s, err := ops.create(service.NewShareService(c.Request.Context()), c.Request.Context(), user, &req)
	if err != nil {
		fail(c, err, "create share failed")
		return
	}

	c.JSON(http.StatusCreated, s)
}

func listShares(c *gin.Context, ops shareOps, resourceID string) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	shares, err := ops.list(service.NewShareService(c.Request.Context()), c.Request.Context(), resourceID, user)
	if err != nil {
		fail(c, err, "list shares failed")
		return
	}

	c.JSON(http.StatusOK, types.ListSharesResponse{Shares: shares})
}

func updateShare(c *gin.Context, ops shareOps) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req types.UpdateShareRequest
	if !bind(c, &req) {
		return
	}

	s, err := ops.update(service.NewShareService(c.Request.Context()), c.Request.Context(), c.Param("shareId"), user, &req)
	if err != nil {
		fail(c, err, "update share failed")
		return
	}

	c.JSON(http.StatusOK, s)
}

func removeShare(c *gin.Context, ops shareOps) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	if err := ops.remove(service.NewShareService(c.Request.Context()), c.Request.Context(), c.Param("shareId"), user); err != nil {
		fail(c, err, "remove share failed")
		return
	}

	c.Status(http.StatusNoContent)
}

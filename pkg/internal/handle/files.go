package handle

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
	"github.com/yeisme/cloudvault/pkg/internal/types"
	"github.com/yeisme/cloudvault/pkg/log"
)

// UploadFile multipart 上传，folder_id 缺省时放在根目录.
//
//	@Summary	上传文件
//	@Tags		文件上传
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file		formData	file	true	"文件内容"
//	@Param		folder_id	formData	string	false	"目标文件夹 ID"
//	@Success	201			{object}	types.File
//	@Failure	400			{object}	map[string]string
//	@Failure	403			{object}	map[string]string
//	@Router		/api/v1/files/upload [post]
func UploadFile(c *gin.Context) {
	folderID := c.PostForm("folder_id")
	if folderID == "" {
		folderID = c.PostForm("folderId")
	}

	uploadMultipart(c, folderID)
}

func uploadMultipart(c *gin.Context, folderID string) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		l := log.Logger()
		l.Warn().Err(err).Msg("missing multipart file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})

		return
	}

	src, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}
	defer src.Close()

	in := &types.UploadInput{
		FolderID: folderID,
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
	}

	f, err := service.NewUploadService(c.Request.Context()).Upload(c.Request.Context(), user, in, src)
	if err != nil {
		fail(c, err, "upload failed")
		return
	}

	c.JSON(http.StatusCreated, f)
}

// SignedUpload 签发直传地址.
//
//	@Summary	签发直传地址
//	@Tags		文件上传
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.SignedUploadRequest	true	"上传信息"
//	@Success	200		{object}	types.SignedUploadResponse
//	@Failure	400		{object}	map[string]string
//	@Failure	403		{object}	map[string]string
//	@Router		/api/v1/files/upload/signed [post]
func SignedUpload(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req types.SignedUploadRequest
	if !bind(c, &req) {
		return
	}

	res, err := service.NewUploadService(c.Request.Context()).IssueSignedUpload(c.Request.Context(), user, &req)
	if err != nil {
		fail(c, err, "signed upload failed")
		return
	}

	c.JSON(http.StatusOK, res)
}

// CompleteUpload 直传完成后登记文件.
//
//	@Summary	完成直传
//	@Tags		文件上传
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.CompleteUploadRequest	true	"完成信息"
//	@Success	201		{object}	types.File
//	@Failure	400		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/api/v1/files/upload/complete [post]
func CompleteUpload(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req types.CompleteUploadRequest
	if !bind(c, &req) {
		return
	}

	f, err := service.NewUploadService(c.Request.Context()).CompleteSignedUpload(c.Request.Context(), user, &req)
	if err != nil {
		fail(c, err, "complete upload failed")
		return
	}

	c.JSON(http.StatusCreated, f)
}

// ReceiveLocalUpload 本地磁盘后端的直传目标.
//
//	@Summary	本地直传
//	@Tags		文件上传
//	@Accept		octet-stream
//	@Produce	json
//	@Param		key	path		string	true	"存储键"
//	@Success	200	{object}	map[string]string
//	@Failure	403	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Router		/api/v1/files/upload/local/{key} [put]
func ReceiveLocalUpload(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	key, err := blob.DecodeKey(c.Param("key"))
	if err != nil || key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid storage key"})
		return
	}

	err = service.NewUploadService(c.Request.Context()).
		ReceiveLocal(c.Request.Context(), user, key, c.Request.Body, c.Request.ContentLength, c.ContentType())
	if err != nil {
		fail(c, err, "receive local upload failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"storage_key": key})
}

// ListFiles 文件夹内的文件，folderId 缺省为根目录.
//
//	@Summary	列出文件
//	@Tags		文件
//	@Produce	json
//	@Param		folderId	query		string	false	"文件夹 ID"
//	@Success	200			{object}	types.ListFilesResponse
//	@Failure	403			{object}	map[string]string
//	@Router		/api/v1/files [get]
func ListFiles(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	folderID := c.Query("folderId")
	if folderID == "" {
		folderID = c.Query("folder_id")
	}

	files, err := service.NewFileService(c.Request.Context()).List(c.Request.Context(), user, folderID)
	if err != nil {
		fail(c, err, "list files failed")
		return
	}

	c.JSON(http.StatusOK, types.ListFilesResponse{Files: files})
}

// FilesSharedWithMe 他人直接共享给我的文件.
//
//	@Summary	共享给我的文件
//	@Tags		文件
//	@Produce	json
//	@Success	200	{object}	types.ListFilesResponse
//	@Router		/api/v1/files/shared-with-me [get]
func FilesSharedWithMe(c *gin.Context) {
	listFiles(c, (*service.FileService).SharedWithMe)
}

// FilesSharedByMe 我共享出去的文件.
//
//	@Summary	我共享的文件
//	@Tags		文件
//	@Produce	json
//	@Success	200	{object}	types.ListFilesResponse
//	@Router		/api/v1/files/shared-by-me [get]
func FilesSharedByMe(c *gin.Context) {
	listFiles(c, (*service.FileService).SharedByMe)
}

func listFiles(c *gin.Context, fn func(s *service.FileService, ctx context.Context, userID string) ([]types.File, error)) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	files, err := fn(service.NewFileService(c.Request.Context()), c.Request.Context(), user)
	if err != nil {
		fail(c, err, "list files failed")
		return
	}

	c.JSON(http.StatusOK, types.ListFilesResponse{Files: files})
}

// GetFile 文件元数据；公开文件允许匿名访问.
//
//	@Summary	文件详情
//	@Tags		文件
//	@Produce	json
//	@Param		fileId	path		string	true	"文件 ID"
//	@Success	200		{object}	types.File
//	@Failure	403		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/api/v1/files/{fileId} [get]
func GetFile(c *gin.Context) {
	f, err := service.NewFileService(c.Request.Context()).Get(c.Request.Context(), c.Param("fileId"), currentUser(c))
	if err != nil {
		fail(c, err, "get file failed")
		return
	}

	c.JSON(http.StatusOK, f)
}

// DownloadFile 有直接地址时 302 跳转，否则中转内容.
//
//	@Summary	下载文件
//	@Tags		文件
//	@Produce	octet-stream
//	@Param		fileId	path	string	true	"文件 ID"
//	@Success	200
//	@Success	302
//	@Failure	403	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Router		/api/v1/files/{fileId}/download [get]
func DownloadFile(c *gin.Context) {
	ctx := c.Request.Context()
	svc := service.NewDownloadService(ctx)

	f, u, err := svc.Locate(ctx, c.Param("fileId"), currentUser(c))
	if err != nil {
		fail(c, err, "download failed")
		return
	}

	serveFile(c, f, u, func() (io.ReadCloser, error) { return svc.Open(ctx, f) })
}

// DownloadToken 签发免认证下载令牌.
//
//	@Summary	下载令牌
//	@Tags		文件
//	@Produce	json
//	@Param		fileId	path		string	true	"文件 ID"
//	@Success	200		{object}	types.DownloadTokenResponse
//	@Failure	403		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/api/v1/files/{fileId}/download-token [get]
func DownloadToken(c *gin.Context) {
	res, err := service.NewDownloadService(c.Request.Context()).IssueToken(c.Request.Context(), c.Param("fileId"), currentUser(c))
	if err != nil {
		fail(c, err, "issue download token failed")
		return
	}

	c.JSON(http.StatusOK, res)
}

// UpdateFile 修改元数据、移动或转移所有权.
//
//	@Summary	修改文件
//	@Tags		文件
//	@Accept		json
//	@Produce	json
//	@Param		fileId	path		string					true	"文件 ID"
//	@Param		body	body		types.UpdateFileRequest	true	"修改内容"
//	@Success	200		{object}	types.File
//	@Failure	400		{object}	map[string]string
//	@Failure	403		{object}	map[string]string
//	@Failure	409		{object}	map[string]string
//	@Router		/api/v1/files/{fileId} [patch]
func UpdateFile(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req types.UpdateFileRequest
	if !bind(c, &req) {
		return
	}

	f, err := service.NewFileService(c.Request.Context()).Update(c.Request.Context(), c.Param("fileId"), user, &req)
	if err != nil {
		fail(c, err, "update file failed")
		return
	}

	c.JSON(http.StatusOK, f)
}

// DeleteFile 删除文件并释放配额.
//
//	@Summary	删除文件
//	@Tags		文件
//	@Param		fileId	path	string	true	"文件 ID"
//	@Success	204
//	@Failure	403	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Router		/api/v1/files/{fileId} [delete]
func DeleteFile(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	if err := service.NewFileService(c.Request.Context()).Delete(c.Request.Context(), c.Param("fileId"), user); err != nil {
		fail(c, err, "delete file failed")
		return
	}

	c.Status(http.StatusNoContent)
}
